package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripdesk/backend/internal/db"
	"github.com/tripdesk/backend/internal/models"
)

var testNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func rep(id string, active bool) models.User {
	login := testNow.Add(-time.Hour)
	return models.User{ID: id, Email: id + "@agency.test", Name: id, Role: models.RoleSalesRep, IsActive: active, LastLoginAt: &login, CreatedAt: testNow}
}

func autoSettings(strategy string) models.AssignmentSettings {
	s := models.DefaultAssignmentSettings()
	s.AssignmentMode = models.AssignmentModeAuto
	s.AutoStrategy = strategy
	return s
}

func newAssigner(store *db.MemoryStore) *Assigner {
	return &Assigner{Settings: store, Reps: store, Logger: zerolog.Nop(), Now: fixedClock, CASRetries: 2}
}

func seedStore(t *testing.T, settings models.AssignmentSettings, reps ...models.User) *db.MemoryStore {
	t.Helper()
	store := db.NewMemoryStore()
	for _, r := range reps {
		store.PutUser(r)
	}
	if err := store.SaveAssignmentSettings(context.Background(), settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	return store
}

func TestManualModeNeverAssigns(t *testing.T) {
	store := seedStore(t, models.DefaultAssignmentSettings(), rep("r1", true))
	res, err := newAssigner(store).AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "l1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Assigned || res.Reason != ReasonManualMode {
		t.Fatalf("expected manual mode result, got %+v", res)
	}
	st, _ := store.GetAssignmentSettings(context.Background())
	if st.RoundRobinIndex != 0 {
		t.Fatalf("manual mode must not touch the index, got %d", st.RoundRobinIndex)
	}
}

func TestRoundRobinCyclesThroughAllReps(t *testing.T) {
	store := seedStore(t, autoSettings(models.StrategyRoundRobin), rep("r3", true), rep("r1", true), rep("r2", true))
	a := newAssigner(store)

	var got []string
	for i := 0; i < 6; i++ {
		res, err := a.AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "lead"})
		if err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
		if !res.Assigned {
			t.Fatalf("assign %d: expected assignment, got %+v", i, res)
		}
		got = append(got, res.SalesRepID)
	}
	want := []string{"r1", "r2", "r3", "r1", "r2", "r3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	st, _ := store.GetAssignmentSettings(context.Background())
	if st.RoundRobinIndex != 6 {
		t.Fatalf("expected index 6, got %d", st.RoundRobinIndex)
	}
}

func TestRoundRobinNoCandidatesLeavesIndex(t *testing.T) {
	settings := autoSettings(models.StrategyRoundRobin)
	settings.RoundRobinIndex = 4
	store := seedStore(t, settings, rep("r1", false))

	res, err := newAssigner(store).AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "l1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Assigned || res.Reason != ReasonNoEligibleReps {
		t.Fatalf("expected no eligible reps, got %+v", res)
	}
	st, _ := store.GetAssignmentSettings(context.Background())
	if st.RoundRobinIndex != 4 {
		t.Fatalf("index must stay at 4, got %d", st.RoundRobinIndex)
	}
}

// contendedSettings loses every swap, as if another instance always advanced
// the index first.
type contendedSettings struct {
	*db.MemoryStore
	swaps int
}

func (c *contendedSettings) TrySwapRoundRobinIndex(context.Context, int, int) (bool, error) {
	c.swaps++
	return false, nil
}

func TestRoundRobinContention(t *testing.T) {
	store := seedStore(t, autoSettings(models.StrategyRoundRobin), rep("r1", true), rep("r2", true))
	contended := &contendedSettings{MemoryStore: store}
	a := newAssigner(store)
	a.Settings = contended

	res, err := a.AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "l1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Assigned || res.Reason != ReasonRoundRobinContended {
		t.Fatalf("expected contention result, got %+v", res)
	}
	if contended.swaps != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", contended.swaps)
	}

	a.TolerateRace = true
	res, err = a.AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "l2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Assigned || res.SalesRepID != "r1" {
		t.Fatalf("expected tolerated pick r1, got %+v", res)
	}
}

type brokenSettings struct{ *db.MemoryStore }

func (brokenSettings) GetAssignmentSettings(context.Context) (models.AssignmentSettings, error) {
	return models.AssignmentSettings{}, errors.New("connection reset")
}

func TestSettingsFailureIsAnError(t *testing.T) {
	store := db.NewMemoryStore()
	a := newAssigner(store)
	a.Settings = brokenSettings{store}
	if _, err := a.AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "l1"}); err == nil {
		t.Fatalf("expected infrastructure error")
	}
}

func seedOpenLeads(t *testing.T, store *db.MemoryStore, repID string, n int, status models.LeadStatus) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := repID
		err := store.CreateLead(context.Background(), models.Lead{
			ID:         repID + "-" + string(status) + "-" + string(rune('a'+i)),
			Name:       "Lead",
			Email:      "lead@example.com",
			TravelDate: testNow,
			Status:     status,
			AssignedTo: &id,
			Source:     models.NoSource(),
			Origin:     models.OriginManual,
			CreatedAt:  testNow,
			UpdatedAt:  testNow,
		})
		if err != nil {
			t.Fatalf("seed lead: %v", err)
		}
	}
}

func TestLoadBasedPicksFewestOpenLeads(t *testing.T) {
	store := seedStore(t, autoSettings(models.StrategyLoadBased), rep("r1", true), rep("r2", true), rep("r3", true))
	seedOpenLeads(t, store, "r1", 3, models.LeadStatusNew)
	seedOpenLeads(t, store, "r2", 1, models.LeadStatusContacted)
	seedOpenLeads(t, store, "r3", 1, models.LeadStatusQuoted)
	seedOpenLeads(t, store, "r2", 4, models.LeadStatusConverted)

	res, err := newAssigner(store).AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "l1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Assigned || res.SalesRepID != "r2" {
		t.Fatalf("expected r2 (tie with r3 broken by id, converted leads ignored), got %+v", res)
	}
}

func TestLoadBasedRespectsCap(t *testing.T) {
	settings := autoSettings(models.StrategyLoadBased)
	settings.MaxOpenLeadsPerRep = 2
	store := seedStore(t, settings, rep("r1", true), rep("r2", true))
	seedOpenLeads(t, store, "r1", 1, models.LeadStatusNew)
	seedOpenLeads(t, store, "r2", 2, models.LeadStatusNew)

	a := newAssigner(store)
	res, err := a.AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "l1"})
	if err != nil || !res.Assigned || res.SalesRepID != "r1" {
		t.Fatalf("expected r1, got %+v (%v)", res, err)
	}

	seedOpenLeads(t, store, "r1", 1, models.LeadStatusInterested)
	res, err = a.AssignSalesRepIfNeeded(context.Background(), models.Lead{ID: "l2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Assigned || res.Reason != ReasonAllAtCapacity {
		t.Fatalf("expected all reps at capacity, got %+v", res)
	}
}

func TestFilterEligibleReps(t *testing.T) {
	stale := testNow.Add(-72 * time.Hour)
	old := testNow.Add(-60 * 24 * time.Hour)

	r1 := rep("r1", true)
	r2 := rep("r2", true)
	r2.LastLoginAt = &stale
	r3 := rep("r3", true)
	r3.LastLoginAt = &old
	r4 := rep("r4", false)
	reps := []models.User{r4, r3, r2, r1}

	cases := []struct {
		name     string
		mutate   func(*models.AssignmentSettings)
		want     []string
		reason   string
		stageLen int
	}{
		{"all active", func(*models.AssignmentSettings) {}, []string{"r1", "r2", "r3"}, "", 5},
		{"allow list", func(s *models.AssignmentSettings) { s.EnabledSalesReps = []string{"r2", "r4"} }, []string{"r2"}, "", 5},
		{"allow list only inactive", func(s *models.AssignmentSettings) { s.EnabledSalesReps = []string{"r4"} }, nil, "NOT_IN_ALLOW_LIST", 3},
		{"login 48h", func(s *models.AssignmentSettings) { s.RequireActiveLogin48h = true }, []string{"r1"}, "", 5},
		{"skip inactive", func(s *models.AssignmentSettings) { s.SkipInactive = true }, []string{"r1", "r2"}, "", 5},
		{"nobody logged in", func(s *models.AssignmentSettings) {
			s.RequireActiveLogin48h = true
			s.EnabledSalesReps = []string{"r3"}
		}, nil, "NO_RECENT_LOGIN", 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := autoSettings(models.StrategyRoundRobin)
			tc.mutate(&s)
			res := FilterEligibleReps(reps, s, testNow, 30*24*time.Hour)
			if res.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, res.Reason)
			}
			if len(res.Stages) != tc.stageLen {
				t.Fatalf("expected %d stages, got %d", tc.stageLen, len(res.Stages))
			}
			if len(res.Eligible) != len(tc.want) {
				t.Fatalf("expected %v, got %+v", tc.want, res.Eligible)
			}
			for i, id := range tc.want {
				if res.Eligible[i].ID != id {
					t.Fatalf("expected %v at %d, got %s", tc.want, i, res.Eligible[i].ID)
				}
			}
		})
	}
}

func TestFilterEligibleRepsNoActive(t *testing.T) {
	res := FilterEligibleReps([]models.User{rep("r1", false)}, autoSettings(models.StrategyRoundRobin), testNow, time.Hour)
	if res.Reason != "NO_ACTIVE_REPS" || len(res.Eligible) != 0 {
		t.Fatalf("expected NO_ACTIVE_REPS, got %+v", res)
	}
}
