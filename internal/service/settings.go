package service

import (
	"context"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
)

type AssignmentSettingsService struct {
	Store SettingsStore
	Now   Clock
}

type AssignmentSettingsInput struct {
	AssignmentMode        string   `json:"assignmentMode" validate:"required,oneof=manual auto"`
	AutoStrategy          string   `json:"autoStrategy" validate:"required,oneof=round_robin load_based"`
	EnabledSalesReps      []string `json:"enabledSalesReps"`
	MaxOpenLeadsPerRep    int      `json:"maxOpenLeadsPerRep" validate:"gte=0"`
	SkipInactive          bool     `json:"skipInactive"`
	RequireActiveLogin48h bool     `json:"requireActiveLogin48h"`
}

func (s *AssignmentSettingsService) Get(ctx context.Context) (models.AssignmentSettings, error) {
	return s.Store.GetAssignmentSettings(ctx)
}

// Update replaces the admin-editable settings. The round-robin cursor keeps its
// current value.
func (s *AssignmentSettingsService) Update(ctx context.Context, in AssignmentSettingsInput) (models.AssignmentSettings, error) {
	var fields []apperr.FieldError
	if in.AssignmentMode != models.AssignmentModeManual && in.AssignmentMode != models.AssignmentModeAuto {
		fields = append(fields, apperr.FieldError{Field: "assignmentMode", Message: "must be manual or auto"})
	}
	if in.AutoStrategy != models.StrategyRoundRobin && in.AutoStrategy != models.StrategyLoadBased {
		fields = append(fields, apperr.FieldError{Field: "autoStrategy", Message: "must be round_robin or load_based"})
	}
	if in.MaxOpenLeadsPerRep < 0 {
		fields = append(fields, apperr.FieldError{Field: "maxOpenLeadsPerRep", Message: "must not be negative"})
	}
	if len(fields) > 0 {
		return models.AssignmentSettings{}, apperr.Validation("Invalid assignment settings", fields...)
	}

	reps := dedupeStrings(in.EnabledSalesReps)
	current, err := s.Store.GetAssignmentSettings(ctx)
	if err != nil {
		return models.AssignmentSettings{}, err
	}
	next := models.AssignmentSettings{
		AssignmentMode:        in.AssignmentMode,
		AutoStrategy:          in.AutoStrategy,
		EnabledSalesReps:      reps,
		RoundRobinIndex:       current.RoundRobinIndex,
		MaxOpenLeadsPerRep:    in.MaxOpenLeadsPerRep,
		SkipInactive:          in.SkipInactive,
		RequireActiveLogin48h: in.RequireActiveLogin48h,
		UpdatedAt:             s.Now.now(),
	}
	if err := s.Store.SaveAssignmentSettings(ctx, next); err != nil {
		return models.AssignmentSettings{}, err
	}
	return next, nil
}

func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
