package models

import (
	"encoding/json"
	"fmt"
)

type SourceKind string

const (
	SourceNone       SourceKind = "none"
	SourceCatalog    SourceKind = "catalog"
	SourceCustomized SourceKind = "customized"
	SourceManual     SourceKind = "manual"
)

// ItinerarySource is the single itinerary a lead points at. Only one kind can be
// set at a time, so a lead can never reference both a catalog package and a
// customized one.
type ItinerarySource struct {
	Kind SourceKind
	ID   string
}

func NoSource() ItinerarySource                  { return ItinerarySource{Kind: SourceNone} }
func CatalogSource(id string) ItinerarySource    { return ItinerarySource{Kind: SourceCatalog, ID: id} }
func CustomizedSource(id string) ItinerarySource { return ItinerarySource{Kind: SourceCustomized, ID: id} }
func ManualSource(id string) ItinerarySource     { return ItinerarySource{Kind: SourceManual, ID: id} }

func (s ItinerarySource) IsNone() bool {
	return s.Kind == "" || s.Kind == SourceNone
}

func (s ItinerarySource) PackageID() (string, bool) {
	return s.ID, s.Kind == SourceCatalog
}

func (s ItinerarySource) CustomizedPackageID() (string, bool) {
	return s.ID, s.Kind == SourceCustomized
}

func (s ItinerarySource) ManualItineraryID() (string, bool) {
	return s.ID, s.Kind == SourceManual
}

type sourceJSON struct {
	Kind SourceKind `json:"kind"`
	ID   *string    `json:"id"`
}

func (s ItinerarySource) MarshalJSON() ([]byte, error) {
	if s.IsNone() {
		return json.Marshal(sourceJSON{Kind: SourceNone})
	}
	id := s.ID
	return json.Marshal(sourceJSON{Kind: s.Kind, ID: &id})
}

func (s *ItinerarySource) UnmarshalJSON(b []byte) error {
	var raw sourceJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	src, err := ParseSource(string(raw.Kind), raw.ID)
	if err != nil {
		return err
	}
	*s = src
	return nil
}

// ParseSource rebuilds a source from its stored kind/id pair.
func ParseSource(kind string, id *string) (ItinerarySource, error) {
	switch SourceKind(kind) {
	case "", SourceNone:
		return NoSource(), nil
	case SourceCatalog, SourceCustomized, SourceManual:
		if id == nil || *id == "" {
			return ItinerarySource{}, fmt.Errorf("itinerary source %q requires an id", kind)
		}
		return ItinerarySource{Kind: SourceKind(kind), ID: *id}, nil
	default:
		return ItinerarySource{}, fmt.Errorf("unknown itinerary source kind %q", kind)
	}
}

// Columns returns the persisted (kind, id) pair.
func (s ItinerarySource) Columns() (string, *string) {
	if s.IsNone() {
		return string(SourceNone), nil
	}
	id := s.ID
	return string(s.Kind), &id
}
