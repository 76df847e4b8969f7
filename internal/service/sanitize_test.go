package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
)

func TestSanitizeDropsEmptyEnumsAndAccommodation(t *testing.T) {
	days, err := SanitizeDays([]models.Day{{
		DayNumber:     7,
		Transport:     "",
		Accommodation: &models.Accommodation{Type: "", Name: " "},
		Activities:    []string{"", "Hike"},
	}})
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 1, days[0].DayNumber)
	assert.Empty(t, days[0].Transport)
	assert.Nil(t, days[0].Accommodation)
	assert.Equal(t, []string{"Hike"}, days[0].Activities)
}

func TestSanitizeKeepsPartialAccommodation(t *testing.T) {
	days, err := SanitizeDays([]models.Day{{
		Transport:     "train",
		Accommodation: &models.Accommodation{Type: "", Name: "Sea View Inn"},
	}})
	require.NoError(t, err)
	require.NotNil(t, days[0].Accommodation)
	assert.Equal(t, "Sea View Inn", days[0].Accommodation.Name)
	assert.Empty(t, days[0].Accommodation.Type)
	assert.Equal(t, "train", days[0].Transport)
}

func TestSanitizeRejectsUnknownEnums(t *testing.T) {
	_, err := SanitizeDays([]models.Day{
		{},
		{Transport: "rocket", Accommodation: &models.Accommodation{Type: "castle", Rating: 9}},
	})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	var fields []string
	for _, f := range ae.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"days[1].transport", "days[1].accommodation.type", "days[1].accommodation.rating"}, fields)
}

func TestSanitizeImages(t *testing.T) {
	got := SanitizeImages([]models.Image{
		{URL: "https://cdn/a.jpg", StorageKey: "a"},
		{URL: "https://cdn/b.jpg"},
		{URL: "blob:tmp", StorageKey: "tmp", IsTemp: true},
		{StorageKey: "c"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].StorageKey)
}

func TestPrepareDaysMetadataMatchesSums(t *testing.T) {
	in := []models.Day{
		{Activities: []string{"a", "b"}, Locations: []string{"l1"}, Places: []string{"p1", "p2", "p3"}},
		{Activities: []string{"c"}, Meals: models.Meals{Lunch: true, Dinner: true}},
		{Locations: []string{"l2", "l3"}},
	}
	days, meta, err := prepareDays(in)
	require.NoError(t, err)

	var acts, locs, places int
	for _, d := range days {
		acts += len(d.Activities)
		locs += len(d.Locations)
		places += len(d.Places)
	}
	assert.Equal(t, acts, meta.TotalActivities)
	assert.Equal(t, locs, meta.TotalLocations)
	assert.Equal(t, places, meta.TotalPlaces)
	assert.Equal(t, 3, meta.TotalDays)
	assert.Equal(t, models.MealCounts{Lunch: 1, Dinner: 1}, meta.MealsIncluded)
	assert.Equal(t, "Day 3", days[2].Title)
	assert.NotNil(t, days[2].Activities)
}
