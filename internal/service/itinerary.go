package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
)

var errNoDays = apperr.Validation("Invalid itinerary",
	apperr.FieldError{Field: "days", Message: "must contain at least one day"})

type ItineraryInput struct {
	Days  []models.Day `json:"days"`
	Notes *string      `json:"notes"`
}

type ItineraryService struct {
	Tx          TxRunner
	Leads       LeadStore
	Itineraries ItineraryStore
	Logger      zerolog.Logger
	Now         Clock
}

// CreateForLead attaches a new itinerary to a lead that has none.
func (s *ItineraryService) CreateForLead(ctx context.Context, leadID string, in ItineraryInput, actorID string) (models.ManualItinerary, error) {
	if len(in.Days) == 0 {
		return models.ManualItinerary{}, errNoDays
	}
	days, metadata, err := prepareDays(in.Days)
	if err != nil {
		return models.ManualItinerary{}, err
	}

	var out models.ManualItinerary
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		lead, err := s.Leads.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if _, err := s.Itineraries.GetItineraryByLead(ctx, leadID); err == nil {
			return apperr.Duplicate("Lead already has a manual itinerary")
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		now := s.Now.now()
		it := models.ManualItinerary{
			ID:        uuid.NewString(),
			LeadID:    lead.ID,
			Days:      days,
			Metadata:  metadata,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if in.Notes != nil {
			it.Notes = strings.TrimSpace(*in.Notes)
		}
		if actorID != "" {
			it.CreatedBy = &actorID
		}
		if err := s.Itineraries.CreateItinerary(ctx, it); err != nil {
			return err
		}
		if err := s.attach(ctx, lead, it.ID); err != nil {
			return err
		}
		out = it
		return nil
	})
	return out, err
}

// ReplaceForLead swaps the full day list and bumps the version. A lead without
// an itinerary gets a new one.
func (s *ItineraryService) ReplaceForLead(ctx context.Context, leadID string, in ItineraryInput, actorID string) (models.ManualItinerary, error) {
	if len(in.Days) == 0 {
		return models.ManualItinerary{}, errNoDays
	}
	days, metadata, err := prepareDays(in.Days)
	if err != nil {
		return models.ManualItinerary{}, err
	}

	var out models.ManualItinerary
	created := false
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		lead, err := s.Leads.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		it, err := s.Itineraries.GetItineraryByLead(ctx, leadID)
		if apperr.Is(err, apperr.KindNotFound) {
			created = true
			out, err = s.CreateForLead(ctx, leadID, in, actorID)
			return err
		}
		if err != nil {
			return err
		}
		it.Days = days
		it.Metadata = metadata
		if in.Notes != nil {
			it.Notes = strings.TrimSpace(*in.Notes)
		}
		it.Version++
		it.UpdatedAt = s.Now.now()
		if err := s.Itineraries.UpdateItinerary(ctx, it); err != nil {
			return err
		}
		if err := s.attach(ctx, lead, it.ID); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err == nil {
		s.Logger.Debug().Str("lead_id", leadID).Int("version", out.Version).Bool("created", created).Msg("itinerary saved")
	}
	return out, err
}

func (s *ItineraryService) GetByLead(ctx context.Context, leadID string) (models.ManualItinerary, error) {
	if _, err := s.Leads.GetLead(ctx, leadID); err != nil {
		return models.ManualItinerary{}, err
	}
	return s.Itineraries.GetItineraryByLead(ctx, leadID)
}

func (s *ItineraryService) Get(ctx context.Context, id string) (models.ManualItinerary, error) {
	return s.Itineraries.GetItinerary(ctx, id)
}

// Delete removes the itinerary and clears the lead's reference to it.
func (s *ItineraryService) Delete(ctx context.Context, id string) error {
	return s.Tx.InTx(ctx, func(ctx context.Context) error {
		it, err := s.Itineraries.GetItinerary(ctx, id)
		if err != nil {
			return err
		}
		if err := s.Itineraries.DeleteItinerary(ctx, id); err != nil {
			return err
		}
		lead, err := s.Leads.GetLead(ctx, it.LeadID)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if mid, ok := lead.Source.ManualItineraryID(); ok && mid == id {
			lead.Source = models.NoSource()
			lead.UpdatedAt = s.Now.now()
			return s.Leads.UpdateLead(ctx, lead)
		}
		return nil
	})
}

func (s *ItineraryService) attach(ctx context.Context, lead models.Lead, itineraryID string) error {
	if mid, ok := lead.Source.ManualItineraryID(); ok && mid == itineraryID {
		return nil
	}
	lead.Source = models.ManualSource(itineraryID)
	lead.UpdatedAt = s.Now.now()
	return s.Leads.UpdateLead(ctx, lead)
}
