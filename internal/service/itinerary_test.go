package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
)

func TestItineraryLifecycle(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	lead := s.lead(t, "ravi")

	_, err := s.itineraries.GetByLead(ctx, lead.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	notes := "vegetarian meals"
	it, err := s.itineraries.CreateForLead(ctx, lead.ID, ItineraryInput{
		Days:  []models.Day{{Activities: []string{"Tour", " "}}},
		Notes: &notes,
	}, "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 1, it.Version)
	assert.Equal(t, []string{"Tour"}, it.Days[0].Activities)
	require.NotNil(t, it.CreatedBy)
	assert.Equal(t, "rep-1", *it.CreatedBy)

	_, err = s.itineraries.CreateForLead(ctx, lead.ID, ItineraryInput{Days: []models.Day{{}}}, "rep-1")
	assert.True(t, apperr.Is(err, apperr.KindDuplicate))

	replaced, err := s.itineraries.ReplaceForLead(ctx, lead.ID, ItineraryInput{
		Days: []models.Day{{Activities: []string{"A"}}, {Activities: []string{"B", "C"}, Locations: []string{"X"}}},
	}, "rep-1")
	require.NoError(t, err)
	assert.Equal(t, it.ID, replaced.ID)
	assert.Equal(t, 2, replaced.Version)
	assert.Equal(t, 3, replaced.Metadata.TotalActivities)
	assert.Equal(t, 1, replaced.Metadata.TotalLocations)
	assert.Equal(t, notes, replaced.Notes, "notes are kept when not sent")

	got, err := s.itineraries.GetByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)

	require.NoError(t, s.itineraries.Delete(ctx, it.ID))
	stored, err := s.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, stored.Source.IsNone())

	_, err = s.itineraries.GetByLead(ctx, lead.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReplaceCreatesWhenMissing(t *testing.T) {
	s := newServices(t)
	lead := s.lead(t, "ravi")

	it, err := s.itineraries.ReplaceForLead(context.Background(), lead.ID, ItineraryInput{Days: []models.Day{{}}}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, it.Version)
	assert.Nil(t, it.CreatedBy)

	stored, err := s.store.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	mid, ok := stored.Source.ManualItineraryID()
	assert.True(t, ok)
	assert.Equal(t, it.ID, mid)
}

func TestItineraryErrors(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.itineraries.CreateForLead(ctx, "missing", ItineraryInput{Days: []models.Day{{}}}, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	lead := s.lead(t, "ravi")
	_, err = s.itineraries.ReplaceForLead(ctx, lead.ID, ItineraryInput{}, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = s.itineraries.Delete(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
