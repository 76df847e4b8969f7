package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripdesk/backend/internal/metrics"
	"github.com/tripdesk/backend/internal/models"
)

const (
	ReasonManualMode          = "manual_mode"
	ReasonNoEligibleReps      = "no_eligible_reps"
	ReasonAllAtCapacity       = "all_at_capacity"
	ReasonRoundRobinContended = "round_robin_contention"
	ReasonUnknownStrategy     = "unknown_strategy"

	loginWindow = 48 * time.Hour
)

type AssignmentResult struct {
	Assigned   bool
	SalesRepID string
	SalesRep   *models.User
	Strategy   string
	Reason     string
}

type EligibilityResult struct {
	Eligible []models.User
	Reason   string
	Stages   []EligibilityStage
}

type EligibilityStage struct {
	Name       string
	Candidates []models.User
}

// Assigner picks a sales rep for a new lead according to the persisted
// assignment settings.
type Assigner struct {
	Settings SettingsStore
	Reps     RepStore
	Logger   zerolog.Logger
	Now      Clock

	// InactivityWindow bounds "recent activity" when SkipInactive is set.
	InactivityWindow time.Duration
	// CASRetries is how many times a lost round-robin swap is retried.
	CASRetries int
	// TolerateRace accepts the last pick even when every swap attempt lost.
	TolerateRace bool
}

// AssignSalesRepIfNeeded never fails for "nobody eligible"; that is an
// unassigned result. Errors are infrastructure failures only.
func (a *Assigner) AssignSalesRepIfNeeded(ctx context.Context, lead models.Lead) (AssignmentResult, error) {
	settings, err := a.Settings.GetAssignmentSettings(ctx)
	if err != nil {
		return AssignmentResult{}, fmt.Errorf("read assignment settings: %w", err)
	}
	if settings.AssignmentMode != models.AssignmentModeAuto {
		return a.record(settings, AssignmentResult{Reason: ReasonManualMode}), nil
	}

	reps, err := a.Reps.ListSalesReps(ctx)
	if err != nil {
		return AssignmentResult{}, fmt.Errorf("list sales reps: %w", err)
	}
	elig := FilterEligibleReps(reps, settings, a.Now.now(), a.inactivityWindow())
	if len(elig.Eligible) == 0 {
		a.Logger.Debug().Str("lead_id", lead.ID).Str("reason", elig.Reason).Msg("no eligible sales rep")
		return a.record(settings, AssignmentResult{Strategy: settings.AutoStrategy, Reason: ReasonNoEligibleReps}), nil
	}

	var res AssignmentResult
	switch settings.AutoStrategy {
	case models.StrategyRoundRobin:
		res, err = a.roundRobin(ctx, settings, elig.Eligible)
	case models.StrategyLoadBased:
		res, err = a.loadBased(ctx, settings, elig.Eligible)
	default:
		res = AssignmentResult{Reason: ReasonUnknownStrategy}
	}
	if err != nil {
		return AssignmentResult{}, err
	}
	res.Strategy = settings.AutoStrategy
	return a.record(settings, res), nil
}

func (a *Assigner) roundRobin(ctx context.Context, settings models.AssignmentSettings, candidates []models.User) (AssignmentResult, error) {
	idx := settings.RoundRobinIndex
	var pick models.User
	for attempt := 0; attempt <= a.CASRetries; attempt++ {
		pick = candidates[positiveMod(idx, len(candidates))]
		ok, err := a.Settings.TrySwapRoundRobinIndex(ctx, idx, idx+1)
		if err != nil {
			return AssignmentResult{}, fmt.Errorf("advance round robin index: %w", err)
		}
		if ok {
			return assigned(pick), nil
		}
		metrics.RoundRobinConflicts.Inc()
		if attempt == a.CASRetries {
			break
		}
		fresh, err := a.Settings.GetAssignmentSettings(ctx)
		if err != nil {
			return AssignmentResult{}, fmt.Errorf("re-read assignment settings: %w", err)
		}
		idx = fresh.RoundRobinIndex
	}
	if a.TolerateRace {
		a.Logger.Warn().Str("sales_rep_id", pick.ID).Msg("round robin swap kept losing, accepting pick")
		return assigned(pick), nil
	}
	return AssignmentResult{Reason: ReasonRoundRobinContended}, nil
}

func (a *Assigner) loadBased(ctx context.Context, settings models.AssignmentSettings, candidates []models.User) (AssignmentResult, error) {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	counts, err := a.Reps.CountOpenLeadsByRep(ctx, ids)
	if err != nil {
		return AssignmentResult{}, fmt.Errorf("count open leads: %w", err)
	}

	var (
		best      *models.User
		bestCount int
	)
	for i := range candidates {
		c := candidates[i]
		n := counts[c.ID]
		if settings.MaxOpenLeadsPerRep > 0 && n >= settings.MaxOpenLeadsPerRep {
			continue
		}
		if best == nil || n < bestCount || (n == bestCount && c.ID < best.ID) {
			best, bestCount = &candidates[i], n
		}
	}
	if best == nil {
		return AssignmentResult{Reason: ReasonAllAtCapacity}, nil
	}
	return assigned(*best), nil
}

func (a *Assigner) record(settings models.AssignmentSettings, res AssignmentResult) AssignmentResult {
	outcome := res.Reason
	if res.Assigned {
		outcome = "assigned"
	}
	metrics.Assignments.WithLabelValues(settings.AssignmentMode, settings.AutoStrategy, outcome).Inc()
	return res
}

func (a *Assigner) inactivityWindow() time.Duration {
	if a.InactivityWindow <= 0 {
		return 720 * time.Hour
	}
	return a.InactivityWindow
}

func assigned(rep models.User) AssignmentResult {
	r := rep
	return AssignmentResult{Assigned: true, SalesRepID: rep.ID, SalesRep: &r}
}

func positiveMod(i, n int) int {
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}

// FilterEligibleReps narrows the sales reps in stages. The result is ordered by
// id so the round-robin cycle is stable across calls.
func FilterEligibleReps(reps []models.User, settings models.AssignmentSettings, now time.Time, inactivity time.Duration) EligibilityResult {
	sorted := append([]models.User(nil), reps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var result EligibilityResult
	result.Stages = append(result.Stages, EligibilityStage{Name: "sales_reps", Candidates: sorted})

	active := filterReps(sorted, func(u models.User) bool { return u.IsActive })
	result.Stages = append(result.Stages, EligibilityStage{Name: "active", Candidates: active})
	if len(active) == 0 {
		result.Reason = "NO_ACTIVE_REPS"
		return result
	}

	enabled := active
	if len(settings.EnabledSalesReps) > 0 {
		allow := make(map[string]struct{}, len(settings.EnabledSalesReps))
		for _, id := range settings.EnabledSalesReps {
			allow[id] = struct{}{}
		}
		enabled = filterReps(active, func(u models.User) bool {
			_, ok := allow[u.ID]
			return ok
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{Name: "allow_list", Candidates: enabled})
	if len(enabled) == 0 {
		result.Reason = "NOT_IN_ALLOW_LIST"
		return result
	}

	loggedIn := enabled
	if settings.RequireActiveLogin48h {
		loggedIn = filterReps(enabled, func(u models.User) bool {
			return u.LastLoginAt != nil && now.Sub(*u.LastLoginAt) <= loginWindow
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{Name: "login_48h", Candidates: loggedIn})
	if len(loggedIn) == 0 {
		result.Reason = "NO_RECENT_LOGIN"
		return result
	}

	recent := loggedIn
	if settings.SkipInactive {
		recent = filterReps(loggedIn, func(u models.User) bool {
			seen := u.LastSeen()
			return seen != nil && now.Sub(*seen) <= inactivity
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{Name: "recent_activity", Candidates: recent})
	if len(recent) == 0 {
		result.Reason = "ALL_INACTIVE"
		return result
	}

	result.Eligible = recent
	return result
}

func filterReps(reps []models.User, keep func(models.User) bool) []models.User {
	out := make([]models.User, 0, len(reps))
	for _, r := range reps {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
