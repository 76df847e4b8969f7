package service

import (
	"fmt"
	"strings"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
)

// SanitizeDays normalizes a day list before it is stored: day numbers follow
// position, blank enum values and blank list entries are dropped, an
// accommodation with nothing in it is removed, and unresolved images are
// filtered. Unknown non-empty enum values are reported per field.
func SanitizeDays(days []models.Day) ([]models.Day, error) {
	out := make([]models.Day, 0, len(days))
	var fields []apperr.FieldError
	for i, d := range days {
		d.DayNumber = i + 1
		d.Title = strings.TrimSpace(d.Title)
		d.Transport = strings.TrimSpace(d.Transport)
		if d.Transport != "" && !contains(models.TransportModes, d.Transport) {
			fields = append(fields, apperr.FieldError{
				Field:   fmt.Sprintf("days[%d].transport", i),
				Message: "must be one of " + strings.Join(models.TransportModes, ", "),
			})
		}
		if d.Accommodation != nil {
			a := *d.Accommodation
			a.Name = strings.TrimSpace(a.Name)
			a.Type = strings.TrimSpace(a.Type)
			a.Address = strings.TrimSpace(a.Address)
			a.Contact = strings.TrimSpace(a.Contact)
			if a.Type != "" && !contains(models.AccommodationTypes, a.Type) {
				fields = append(fields, apperr.FieldError{
					Field:   fmt.Sprintf("days[%d].accommodation.type", i),
					Message: "must be one of " + strings.Join(models.AccommodationTypes, ", "),
				})
			}
			if a.Rating < 0 || a.Rating > 5 {
				fields = append(fields, apperr.FieldError{
					Field:   fmt.Sprintf("days[%d].accommodation.rating", i),
					Message: "must be between 0 and 5",
				})
			}
			if a.Empty() {
				d.Accommodation = nil
			} else {
				d.Accommodation = &a
			}
		}
		d.Locations = compactStrings(d.Locations)
		d.Activities = compactStrings(d.Activities)
		d.Places = compactStrings(d.Places)
		d.Images = SanitizeImages(d.Images)
		out = append(out, d)
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid itinerary days", fields...)
	}
	return out, nil
}

// SanitizeImages keeps only images that resolved to stored objects.
func SanitizeImages(images []models.Image) []models.Image {
	out := make([]models.Image, 0, len(images))
	for _, img := range images {
		img.URL = strings.TrimSpace(img.URL)
		img.StorageKey = strings.TrimSpace(img.StorageKey)
		if img.URL == "" || img.StorageKey == "" || img.IsTemp {
			continue
		}
		out = append(out, img)
	}
	return out
}

// ApplyDayDefaults fills the shape the website form may leave out.
func ApplyDayDefaults(days []models.Day) []models.Day {
	out := make([]models.Day, len(days))
	for i, d := range days {
		d.DayNumber = i + 1
		if d.Title == "" {
			d.Title = fmt.Sprintf("Day %d", i+1)
		}
		if d.Locations == nil {
			d.Locations = []string{}
		}
		if d.Activities == nil {
			d.Activities = []string{}
		}
		if d.Places == nil {
			d.Places = []string{}
		}
		if d.Images == nil {
			d.Images = []models.Image{}
		}
		out[i] = d
	}
	return out
}

// prepareDays is the full pipeline used on every itinerary save.
func prepareDays(days []models.Day) ([]models.Day, models.ItineraryMetadata, error) {
	clean, err := SanitizeDays(days)
	if err != nil {
		return nil, models.ItineraryMetadata{}, err
	}
	clean = ApplyDayDefaults(clean)
	return clean, models.ComputeMetadata(clean), nil
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
