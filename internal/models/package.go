package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Package struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	BaseName              string          `json:"baseName"`
	Category              string          `json:"category"`
	Destination           string          `json:"destination"`
	Description           string          `json:"description"`
	DurationDays          int             `json:"durationDays"`
	Price                 decimal.Decimal `json:"price"`
	Currency              string          `json:"currency"`
	Inclusions            []string        `json:"inclusions"`
	Exclusions            []string        `json:"exclusions"`
	Days                  []Day           `json:"days"`
	Images                []Image         `json:"images"`
	IsCustomized          bool            `json:"isCustomized"`
	OriginalPackageID     *string         `json:"originalPackage"`
	CustomizedForLeadID   *string         `json:"customizedForLead"`
	CustomizationSequence int             `json:"customizationSequence,omitempty"`
	SupersededAt          *time.Time      `json:"supersededAt,omitempty"`
	Version               int             `json:"version"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// RootID is the catalog package a package descends from. Lineage is flat: a
// customization of a customization still points at the catalog original.
func (p Package) RootID() string {
	if p.IsCustomized && p.OriginalPackageID != nil && *p.OriginalPackageID != "" {
		return *p.OriginalPackageID
	}
	return p.ID
}

type PackageFilter struct {
	Customized  *bool
	Destination string
	Category    string
	LeadID      string
	Limit       int
	Offset      int
}

var customizedSuffix = regexp.MustCompile(`\s*\(Customized(?:-\d+)?\)\s*$`)

// StripCustomizedSuffix removes any trailing "(Customized)" or "(Customized-N)"
// markers, including repeated ones.
func StripCustomizedSuffix(name string) string {
	name = strings.TrimSpace(name)
	for customizedSuffix.MatchString(name) {
		name = customizedSuffix.ReplaceAllString(name, "")
	}
	return strings.TrimSpace(name)
}

func CustomizedDisplayName(base string, sequence int) string {
	if sequence <= 1 {
		return base + " (Customized)"
	}
	return fmt.Sprintf("%s (Customized-%d)", base, sequence)
}
