package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
	"github.com/tripdesk/backend/internal/utils"
)

// WebsiteSubmission is the public trip request form.
type WebsiteSubmission struct {
	Name              string       `json:"name"`
	Email             string       `json:"email"`
	Phone             string       `json:"phone"`
	Destination       string       `json:"destination"`
	TravelDate        *time.Time   `json:"travelDate"`
	EndDate           *time.Time   `json:"endDate"`
	NumberOfTravelers int          `json:"numberOfTravelers"`
	Days              []models.Day `json:"days"`
	Notes             string       `json:"notes"`
}

type IntakeResult struct {
	LeadID            string  `json:"leadId"`
	ManualItineraryID string  `json:"manualItineraryId"`
	SalesRepID        *string `json:"salesRepId"`
}

type IntakeService struct {
	Tx            TxRunner
	Users         UserStore
	Leads         LeadStore
	Itineraries   ItineraryStore
	Notifications NotificationStore
	Assigner      *Assigner
	Logger        zerolog.Logger
	Now           Clock
}

// Submit creates (or reuses) the visitor's user, a lead and its manual
// itinerary atomically. Auto-assignment and the rep email are best effort.
func (s *IntakeService) Submit(ctx context.Context, in WebsiteSubmission) (IntakeResult, error) {
	email := utils.NormalizeEmail(in.Email)
	if err := validateSubmission(email, in); err != nil {
		return IntakeResult{}, err
	}
	days, metadata, err := prepareDays(in.Days)
	if err != nil {
		return IntakeResult{}, err
	}
	now := s.Now.now()

	lead := models.Lead{
		ID:                uuid.NewString(),
		Name:              strings.TrimSpace(in.Name),
		Email:             email,
		Phone:             strings.TrimSpace(in.Phone),
		Destination:       strings.TrimSpace(in.Destination),
		TravelDate:        *in.TravelDate,
		EndDate:           in.EndDate,
		NumberOfTravelers: in.NumberOfTravelers,
		Status:            models.LeadStatusNew,
		Source:            models.NoSource(),
		Remarks:           []models.Remark{},
		Origin:            models.OriginWebsite,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if lead.NumberOfTravelers <= 0 {
		lead.NumberOfTravelers = 1
	}

	// Assignment runs after validation, so a rejected submission never moves
	// the round-robin cursor, and before the transaction, so a failing policy
	// can never abort the intake.
	var rep *models.User
	if s.Assigner != nil {
		res, err := s.Assigner.AssignSalesRepIfNeeded(ctx, lead)
		if err != nil {
			s.Logger.Warn().Err(err).Str("lead_id", lead.ID).Msg("auto-assignment failed, continuing unassigned")
		} else if res.Assigned {
			rep = res.SalesRep
			lead.AssignedTo = &res.SalesRepID
		}
	}

	itin := models.ManualItinerary{
		ID:        uuid.NewString(),
		LeadID:    lead.ID,
		Days:      days,
		Notes:     strings.TrimSpace(in.Notes),
		Metadata:  metadata,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		userID, err := s.resolveUser(ctx, email, lead.Name, lead.Phone, now)
		if err != nil {
			return err
		}
		lead.UserID = &userID
		if err := s.Leads.CreateLead(ctx, lead); err != nil {
			return err
		}
		if err := s.Itineraries.CreateItinerary(ctx, itin); err != nil {
			return err
		}
		lead.Source = models.ManualSource(itin.ID)
		if err := s.Leads.UpdateLead(ctx, lead); err != nil {
			return err
		}
		if rep != nil {
			return enqueueAssignment(ctx, s.Notifications, *rep, lead, "website", models.AssignmentModeAuto, now)
		}
		return nil
	})
	if err != nil {
		return IntakeResult{}, err
	}

	s.Logger.Info().
		Str("lead_id", lead.ID).
		Str("itinerary_id", itin.ID).
		Bool("assigned", lead.AssignedTo != nil).
		Msg("website intake stored")
	return IntakeResult{LeadID: lead.ID, ManualItineraryID: itin.ID, SalesRepID: lead.AssignedTo}, nil
}

func validateSubmission(email string, in WebsiteSubmission) error {
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if in.TravelDate == nil || in.TravelDate.IsZero() {
		missing = append(missing, "travelDate")
	}
	if len(missing) > 0 {
		return apperr.Missing(missing...)
	}
	var fields []apperr.FieldError
	if !strings.Contains(email, "@") {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(in.Days) == 0 {
		fields = append(fields, apperr.FieldError{Field: "days", Message: "must contain at least one day"})
	}
	if in.EndDate != nil && !in.EndDate.IsZero() && in.EndDate.Before(*in.TravelDate) {
		fields = append(fields, apperr.FieldError{Field: "endDate", Message: "must not be before travelDate"})
	}
	if len(fields) > 0 {
		return apperr.Validation("Invalid submission", fields...)
	}
	return nil
}

// resolveUser finds the visitor by email or creates a customer account with a
// temporary credential. Existing users only get blank contact fields filled.
func (s *IntakeService) resolveUser(ctx context.Context, email, name, phone string, now time.Time) (string, error) {
	existing, err := s.Users.FindUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		newName := utils.FirstNonEmpty(existing.Name, name)
		newPhone := utils.FirstNonEmpty(existing.Phone, phone)
		if newName != existing.Name || newPhone != existing.Phone {
			if err := s.Users.UpdateUserContact(ctx, existing.ID, newName, newPhone); err != nil {
				return "", err
			}
		}
		return existing.ID, nil
	}

	_, hash, err := utils.TempPassword()
	if err != nil {
		return "", err
	}
	u := models.User{
		ID:                 uuid.NewString(),
		Email:              email,
		Name:               name,
		Phone:              phone,
		Role:               models.RoleCustomer,
		PasswordHash:       hash,
		IsTempPassword:     true,
		MustChangePassword: true,
		IsActive:           true,
		CreatedAt:          now,
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		return "", err
	}
	return u.ID, nil
}
