package models

import "time"

var TransportModes = []string{"car", "bus", "train", "flight", "boat", "walk", "mixed", "other"}

var AccommodationTypes = []string{"hotel", "resort", "homestay", "villa", "hostel", "camp", "guesthouse", "other"}

type Accommodation struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Rating  int    `json:"rating,omitempty"`
	Address string `json:"address,omitempty"`
	Contact string `json:"contact,omitempty"`
}

func (a Accommodation) Empty() bool {
	return a.Name == "" && a.Type == "" && a.Rating == 0 && a.Address == "" && a.Contact == ""
}

type Meals struct {
	Breakfast bool `json:"breakfast"`
	Lunch     bool `json:"lunch"`
	Dinner    bool `json:"dinner"`
}

type Image struct {
	URL        string `json:"url"`
	StorageKey string `json:"storageKey,omitempty"`
	Caption    string `json:"caption,omitempty"`
	IsTemp     bool   `json:"isTemp,omitempty"`
}

type Day struct {
	DayNumber     int            `json:"dayNumber"`
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	Locations     []string       `json:"locations"`
	Activities    []string       `json:"activities"`
	Accommodation *Accommodation `json:"accommodation,omitempty"`
	Meals         Meals          `json:"meals"`
	Transport     string         `json:"transport,omitempty"`
	Places        []string       `json:"places"`
	Images        []Image        `json:"images"`
	Notes         string         `json:"notes,omitempty"`
}

type MealCounts struct {
	Breakfast int `json:"breakfast"`
	Lunch     int `json:"lunch"`
	Dinner    int `json:"dinner"`
}

type ItineraryMetadata struct {
	TotalDays       int        `json:"totalDays"`
	TotalActivities int        `json:"totalActivities"`
	TotalLocations  int        `json:"totalLocations"`
	TotalPlaces     int        `json:"totalPlaces"`
	MealsIncluded   MealCounts `json:"mealsIncluded"`
}

type ManualItinerary struct {
	ID        string            `json:"id"`
	LeadID    string            `json:"leadId"`
	Days      []Day             `json:"days"`
	Notes     string            `json:"notes"`
	Metadata  ItineraryMetadata `json:"metadata"`
	Version   int               `json:"version"`
	CreatedBy *string           `json:"createdBy"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// ComputeMetadata derives the itinerary summary from its days. The summary is
// never authoritative; it is rebuilt on every save.
func ComputeMetadata(days []Day) ItineraryMetadata {
	m := ItineraryMetadata{TotalDays: len(days)}
	for _, d := range days {
		m.TotalActivities += len(d.Activities)
		m.TotalLocations += len(d.Locations)
		m.TotalPlaces += len(d.Places)
		if d.Meals.Breakfast {
			m.MealsIncluded.Breakfast++
		}
		if d.Meals.Lunch {
			m.MealsIncluded.Lunch++
		}
		if d.Meals.Dinner {
			m.MealsIncluded.Dinner++
		}
	}
	return m
}
