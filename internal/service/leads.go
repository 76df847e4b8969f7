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

// Actor is the authenticated caller of a lead operation.
type Actor struct {
	ID   string
	Role string
}

type LeadInput struct {
	Name              string     `json:"name" validate:"required"`
	Email             string     `json:"email" validate:"required,email"`
	Phone             string     `json:"phone"`
	Destination       string     `json:"destination" validate:"required"`
	TravelDate        time.Time  `json:"travelDate" validate:"required"`
	EndDate           *time.Time `json:"endDate"`
	NumberOfTravelers int        `json:"numberOfTravelers" validate:"omitempty,gte=1"`
	Origin            string     `json:"origin" validate:"omitempty,oneof=manual booking website"`
	PackageID         string     `json:"packageId"`
}

// LeadPatch updates only the fields that are set.
type LeadPatch struct {
	Name              *string    `json:"name"`
	Email             *string    `json:"email" validate:"omitempty,email"`
	Phone             *string    `json:"phone"`
	Destination       *string    `json:"destination"`
	TravelDate        *time.Time `json:"travelDate"`
	EndDate           *time.Time `json:"endDate"`
	NumberOfTravelers *int       `json:"numberOfTravelers" validate:"omitempty,gte=1"`
	Status            *string    `json:"status"`
	PackageID         *string    `json:"packageId"`
}

type LeadService struct {
	Tx            TxRunner
	Leads         LeadStore
	Users         UserStore
	Packages      PackageStore
	Notifications NotificationStore
	Assigner      *Assigner
	Logger        zerolog.Logger
	Now           Clock
}

func (s *LeadService) Create(ctx context.Context, in LeadInput, actor Actor) (models.Lead, error) {
	now := s.Now.now()
	lead := models.Lead{
		ID:                uuid.NewString(),
		Name:              strings.TrimSpace(in.Name),
		Email:             utils.NormalizeEmail(in.Email),
		Phone:             strings.TrimSpace(in.Phone),
		Destination:       strings.TrimSpace(in.Destination),
		TravelDate:        in.TravelDate,
		EndDate:           in.EndDate,
		NumberOfTravelers: in.NumberOfTravelers,
		Status:            models.LeadStatusNew,
		Source:            models.NoSource(),
		Remarks:           []models.Remark{},
		Origin:            in.Origin,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if lead.Origin == "" {
		lead.Origin = models.OriginManual
	}
	if lead.NumberOfTravelers <= 0 {
		lead.NumberOfTravelers = 1
	}
	if err := checkTripDates(lead.TravelDate, lead.EndDate); err != nil {
		return models.Lead{}, err
	}

	if in.PackageID != "" {
		pkg, err := s.Packages.GetPackage(ctx, in.PackageID)
		if err != nil {
			return models.Lead{}, err
		}
		if err := setPackageSource(&lead, pkg); err != nil {
			return models.Lead{}, err
		}
	}

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

	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.Leads.CreateLead(ctx, lead); err != nil {
			return err
		}
		if rep != nil {
			return enqueueAssignment(ctx, s.Notifications, *rep, lead, actor.ID, models.AssignmentModeAuto, now)
		}
		return nil
	})
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// Get enforces that sales reps only see their own or unassigned leads.
func (s *LeadService) Get(ctx context.Context, id string, actor Actor) (models.Lead, error) {
	lead, err := s.Leads.GetLead(ctx, id)
	if err != nil {
		return models.Lead{}, err
	}
	if err := canSee(lead, actor); err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

func (s *LeadService) List(ctx context.Context, f models.LeadFilter, actor Actor) ([]models.Lead, int, error) {
	if f.Status != "" && !models.LeadStatus(f.Status).Valid() {
		return nil, 0, apperr.Validation("Invalid filter", apperr.FieldError{Field: "status", Message: "unknown status"})
	}
	if actor.Role == models.RoleSalesRep {
		f.AssignedTo = actor.ID
	}
	return s.Leads.ListLeads(ctx, f)
}

func (s *LeadService) Update(ctx context.Context, id string, patch LeadPatch, actor Actor) (models.Lead, error) {
	var out models.Lead
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		lead, err := s.Leads.GetLead(ctx, id)
		if err != nil {
			return err
		}
		if err := canSee(lead, actor); err != nil {
			return err
		}
		if patch.Name != nil {
			lead.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Email != nil {
			lead.Email = utils.NormalizeEmail(*patch.Email)
		}
		if patch.Phone != nil {
			lead.Phone = strings.TrimSpace(*patch.Phone)
		}
		if patch.Destination != nil {
			lead.Destination = strings.TrimSpace(*patch.Destination)
		}
		if patch.TravelDate != nil {
			lead.TravelDate = *patch.TravelDate
		}
		if patch.EndDate != nil {
			if patch.EndDate.IsZero() {
				lead.EndDate = nil
			} else {
				lead.EndDate = patch.EndDate
			}
		}
		if patch.NumberOfTravelers != nil {
			lead.NumberOfTravelers = *patch.NumberOfTravelers
		}
		if patch.Status != nil {
			st := models.LeadStatus(*patch.Status)
			if !st.Valid() {
				return apperr.Validation("Invalid lead", apperr.FieldError{Field: "status", Message: "unknown status"})
			}
			lead.Status = st
		}
		if patch.PackageID != nil {
			if *patch.PackageID == "" {
				if _, ok := lead.Source.PackageID(); ok {
					lead.Source = models.NoSource()
					lead.PackageName = ""
				}
			} else {
				pkg, err := s.Packages.GetPackage(ctx, *patch.PackageID)
				if err != nil {
					return err
				}
				if err := setPackageSource(&lead, pkg); err != nil {
					return err
				}
			}
		}
		if err := checkTripDates(lead.TravelDate, lead.EndDate); err != nil {
			return err
		}
		lead.UpdatedAt = s.Now.now()
		if err := s.Leads.UpdateLead(ctx, lead); err != nil {
			return err
		}
		out = lead
		return nil
	})
	return out, err
}

// Assign is the manual assignment path used by admins.
func (s *LeadService) Assign(ctx context.Context, id, salesRepID string, actor Actor) (models.Lead, error) {
	if salesRepID == "" {
		return models.Lead{}, apperr.Missing("salesRepId")
	}
	var out models.Lead
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		lead, err := s.Leads.GetLead(ctx, id)
		if err != nil {
			return err
		}
		rep, err := s.Users.GetUser(ctx, salesRepID)
		if err != nil {
			return err
		}
		if rep.Role != models.RoleSalesRep || !rep.IsActive {
			return apperr.Validation("Invalid assignment",
				apperr.FieldError{Field: "salesRepId", Message: "must be an active sales rep"})
		}
		if lead.AssignedTo != nil && *lead.AssignedTo == rep.ID {
			out = lead
			return nil
		}
		now := s.Now.now()
		lead.AssignedTo = &rep.ID
		lead.UpdatedAt = now
		if err := s.Leads.UpdateLead(ctx, lead); err != nil {
			return err
		}
		out = lead
		return enqueueAssignment(ctx, s.Notifications, rep, lead, actor.ID, models.AssignmentModeManual, now)
	})
	return out, err
}

func (s *LeadService) AddRemark(ctx context.Context, id, text string, actor Actor) (models.Lead, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Lead{}, apperr.Missing("text")
	}
	var out models.Lead
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		lead, err := s.Leads.GetLead(ctx, id)
		if err != nil {
			return err
		}
		if err := canSee(lead, actor); err != nil {
			return err
		}
		now := s.Now.now()
		lead.Remarks = append(lead.Remarks, models.Remark{Text: text, CreatedAt: now, CreatedBy: actor.ID})
		lead.UpdatedAt = now
		if err := s.Leads.UpdateLead(ctx, lead); err != nil {
			return err
		}
		out = lead
		return nil
	})
	return out, err
}

func (s *LeadService) Delete(ctx context.Context, id string) error {
	if err := s.Leads.DeleteLead(ctx, id); err != nil {
		return err
	}
	s.Logger.Info().Str("lead_id", id).Msg("lead deleted")
	return nil
}

// setPackageSource points the lead at a package. A customized package can only
// be attached to the lead it was customized for.
func setPackageSource(lead *models.Lead, pkg models.Package) error {
	if pkg.IsCustomized {
		if pkg.CustomizedForLeadID == nil || *pkg.CustomizedForLeadID != lead.ID {
			return apperr.Validation("Invalid package",
				apperr.FieldError{Field: "packageId", Message: "is customized for another lead"})
		}
		lead.Source = models.CustomizedSource(pkg.ID)
	} else {
		lead.Source = models.CatalogSource(pkg.ID)
	}
	lead.PackageName = pkg.Name
	return nil
}

func canSee(lead models.Lead, actor Actor) error {
	if actor.Role != models.RoleSalesRep {
		return nil
	}
	if lead.AssignedTo != nil && *lead.AssignedTo != actor.ID {
		return apperr.Forbidden("Lead is assigned to another sales rep")
	}
	return nil
}

func checkTripDates(travel time.Time, end *time.Time) error {
	if travel.IsZero() {
		return apperr.Missing("travelDate")
	}
	if end != nil && end.Before(travel) {
		return apperr.Validation("Invalid trip dates",
			apperr.FieldError{Field: "endDate", Message: "must not be before travelDate"})
	}
	return nil
}
