package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tripdesk/backend/internal/apperr"
)

// Forms send plain dates; API clients send RFC 3339 timestamps.
var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// ParseDate accepts a calendar date or an RFC 3339 timestamp. Dates are
// midnight UTC.
func ParseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation("Invalid date",
		apperr.FieldError{Field: field, Message: "must be YYYY-MM-DD or an RFC 3339 timestamp"})
}

// parseOptionalDate maps a missing or blank value to nil.
func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := ParseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (w *WebsiteSubmission) UnmarshalJSON(b []byte) error {
	type plain WebsiteSubmission
	aux := struct {
		*plain
		TravelDate *string `json:"travelDate"`
		EndDate    *string `json:"endDate"`
	}{plain: (*plain)(w)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	if w.TravelDate, err = parseOptionalDate("travelDate", aux.TravelDate); err != nil {
		return err
	}
	w.EndDate, err = parseOptionalDate("endDate", aux.EndDate)
	return err
}

func (in *LeadInput) UnmarshalJSON(b []byte) error {
	type plain LeadInput
	aux := struct {
		*plain
		TravelDate *string `json:"travelDate"`
		EndDate    *string `json:"endDate"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	travel, err := parseOptionalDate("travelDate", aux.TravelDate)
	if err != nil {
		return err
	}
	if travel != nil {
		in.TravelDate = *travel
	}
	in.EndDate, err = parseOptionalDate("endDate", aux.EndDate)
	return err
}

// An explicit blank endDate in a patch clears it, which is signalled with a
// zero time.
func (p *LeadPatch) UnmarshalJSON(b []byte) error {
	type plain LeadPatch
	aux := struct {
		*plain
		TravelDate *string `json:"travelDate"`
		EndDate    *string `json:"endDate"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	if p.TravelDate, err = parseOptionalDate("travelDate", aux.TravelDate); err != nil {
		return err
	}
	if aux.EndDate != nil && strings.TrimSpace(*aux.EndDate) == "" {
		p.EndDate = &time.Time{}
		return nil
	}
	p.EndDate, err = parseOptionalDate("endDate", aux.EndDate)
	return err
}
