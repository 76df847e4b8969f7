package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
)

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func memLead(id string) models.Lead {
	return models.Lead{
		ID:          id,
		Name:        "Lead " + id,
		Email:       id + "@example.com",
		Destination: "Bali",
		TravelDate:  t0.AddDate(0, 1, 0),
		Status:      models.LeadStatusNew,
		Source:      models.NoSource(),
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

func TestMemoryInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateLead(ctx, memLead("keep")))

	boom := errors.New("boom")
	err := m.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, m.CreateUser(ctx, models.User{ID: "u1", Email: "v@example.com", Role: models.RoleCustomer}))
		require.NoError(t, m.CreateLead(ctx, memLead("gone")))
		require.NoError(t, m.DeleteLead(ctx, "keep"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = m.GetLead(ctx, "gone")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = m.GetLead(ctx, "keep")
	assert.NoError(t, err)
	u, err := m.FindUserByEmail(ctx, "v@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestMemoryNestedInTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	err := m.InTx(ctx, func(ctx context.Context) error {
		if err := m.InTx(ctx, func(ctx context.Context) error {
			return m.CreateLead(ctx, memLead("inner"))
		}); err != nil {
			return err
		}
		return apperr.Validation("outer failed")
	})
	require.Error(t, err)

	_, err = m.GetLead(ctx, "inner")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "inner write must roll back with the outer transaction")
}

func TestMemoryUniqueEmail(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateUser(ctx, models.User{ID: "u1", Email: "a@b.com"}))

	err := m.CreateUser(ctx, models.User{ID: "u2", Email: "a@b.com"})
	assert.True(t, apperr.Is(err, apperr.KindDuplicate))
}

func TestMemoryLeadReferences(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	l := memLead("l1")
	ghost := "ghost"
	l.AssignedTo = &ghost
	assert.Error(t, m.CreateLead(ctx, l))

	l = memLead("l2")
	end := l.TravelDate.AddDate(0, 0, -1)
	l.EndDate = &end
	assert.Error(t, m.CreateLead(ctx, l))
}

func TestMemoryDeleteLeadCascadesItinerary(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateLead(ctx, memLead("l1")))
	require.NoError(t, m.CreateItinerary(ctx, models.ManualItinerary{
		ID: "it1", LeadID: "l1", Days: []models.Day{{DayNumber: 1, Title: "Arrive"}}, Version: 1,
	}))

	require.NoError(t, m.DeleteLead(ctx, "l1"))
	_, err := m.GetItinerary(ctx, "it1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(m.DeleteLead(ctx, "l1"), apperr.KindNotFound))
}

func TestMemoryCustomizedPackageNeedsOriginal(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	missing := "nope"
	err := m.CreatePackage(ctx, models.Package{
		ID: "c1", Name: "X (Customized)", IsCustomized: true, OriginalPackageID: &missing, CustomizationSequence: 1,
	})
	assert.Error(t, err)
}

func TestMemoryRoundRobinSwapIsExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.SaveAssignmentSettings(ctx, models.DefaultAssignmentSettings()))

	const workers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.TrySwapRoundRobinIndex(ctx, 0, 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	st, err := m.GetAssignmentSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.RoundRobinIndex)
}

func TestMemorySaveSettingsKeepsCursor(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ok, err := m.TrySwapRoundRobinIndex(ctx, 0, 5)
	require.NoError(t, err)
	require.True(t, ok)

	in := models.DefaultAssignmentSettings()
	in.AssignmentMode = models.AssignmentModeAuto
	in.RoundRobinIndex = 0
	require.NoError(t, m.SaveAssignmentSettings(ctx, in))

	st, err := m.GetAssignmentSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, st.RoundRobinIndex)
	assert.Equal(t, models.AssignmentModeAuto, st.AssignmentMode)
}

func TestMemoryClaimDueNotifications(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, m.EnqueueNotification(ctx, models.Notification{
			ID:            id,
			Kind:          models.NotificationLeadAssigned,
			Recipient:     "rep@agency.test",
			Status:        models.NotificationPending,
			NextAttemptAt: t0.Add(time.Duration(i) * time.Minute),
			CreatedAt:     t0,
		}))
	}

	now := t0.Add(90 * time.Second)
	batch, err := m.ClaimDueNotifications(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "n1", batch[0].ID)
	assert.Equal(t, "n2", batch[1].ID)

	// Leased rows are not handed out twice.
	again, err := m.ClaimDueNotifications(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	limited, err := m.ClaimDueNotifications(ctx, now.Add(5*time.Minute), time.Minute, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	require.NoError(t, m.MarkNotificationSent(ctx, "n1", now))
	require.NoError(t, m.MarkNotificationRetry(ctx, "n2", now.Add(time.Hour), "smtp down", true))
	pending, err := m.CountPendingNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	all := m.Notifications()
	require.Len(t, all, 3)
	byID := map[string]models.Notification{}
	for _, n := range all {
		byID[n.ID] = n
	}
	assert.Equal(t, models.NotificationSent, byID["n1"].Status)
	assert.Equal(t, models.NotificationFailed, byID["n2"].Status)
	assert.Equal(t, "smtp down", byID["n2"].LastError)
	assert.Equal(t, 1, byID["n2"].Attempts)
}

func TestMemoryListLeadsFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.PutUser(models.User{ID: "rep-1", Email: "rep-1@agency.test", Role: models.RoleSalesRep, IsActive: true})
	for i, id := range []string{"a", "b", "c"} {
		l := memLead(id)
		l.CreatedAt = t0.Add(time.Duration(i) * time.Hour)
		if id != "b" {
			rep := "rep-1"
			l.AssignedTo = &rep
		}
		require.NoError(t, m.CreateLead(ctx, l))
	}

	got, total, err := m.ListLeads(ctx, models.LeadFilter{AssignedTo: "rep-1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID, "newest first")

	counts, err := m.CountOpenLeadsByRep(ctx, []string{"rep-1", "rep-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"rep-1": 2, "rep-2": 0}, counts)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	l := memLead("l1")
	l.Remarks = []models.Remark{{Text: "first"}}
	require.NoError(t, m.CreateLead(ctx, l))

	got, err := m.GetLead(ctx, "l1")
	require.NoError(t, err)
	got.Remarks[0].Text = "mutated"

	again, err := m.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "first", again.Remarks[0].Text)
}
