package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
)

type memState struct {
	users         map[string]models.User
	leads         map[string]models.Lead
	packages      map[string]models.Package
	itineraries   map[string]models.ManualItinerary
	notifications map[string]models.Notification
	settings      *models.AssignmentSettings
}

func newMemState() memState {
	return memState{
		users:         map[string]models.User{},
		leads:         map[string]models.Lead{},
		packages:      map[string]models.Package{},
		itineraries:   map[string]models.ManualItinerary{},
		notifications: map[string]models.Notification{},
	}
}

// clone copies the maps. Values are already deep copies, they are cloned on
// the way in and on the way out.
func (s memState) clone() memState {
	cp := memState{
		users:         make(map[string]models.User, len(s.users)),
		leads:         make(map[string]models.Lead, len(s.leads)),
		packages:      make(map[string]models.Package, len(s.packages)),
		itineraries:   make(map[string]models.ManualItinerary, len(s.itineraries)),
		notifications: make(map[string]models.Notification, len(s.notifications)),
	}
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.leads {
		cp.leads[k] = v
	}
	for k, v := range s.packages {
		cp.packages[k] = v
	}
	for k, v := range s.itineraries {
		cp.itineraries[k] = v
	}
	for k, v := range s.notifications {
		cp.notifications[k] = v
	}
	if s.settings != nil {
		st := cloneSettings(*s.settings)
		cp.settings = &st
	}
	return cp
}

// MemoryStore implements the same contract as Store without Postgres. Writes
// are serialized; InTx holds the write lock for the whole callback and restores
// a snapshot when the callback fails.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state memState
}

type memTxKey struct{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.state.clone()
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func inMemTx(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey{}).(bool)
	return v
}

func (m *MemoryStore) write(ctx context.Context, fn func(st *memState) error) error {
	if !inMemTx(ctx) {
		m.txMu.Lock()
		defer m.txMu.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&m.state)
}

func (m *MemoryStore) read(fn func(st *memState)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(&m.state)
}

// users

func (m *MemoryStore) GetUser(_ context.Context, id string) (models.User, error) {
	var (
		u  models.User
		ok bool
	)
	m.read(func(st *memState) { u, ok = st.users[id] })
	if !ok {
		return models.User{}, apperr.NotFound("User")
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	var found *models.User
	m.read(func(st *memState) {
		for _, u := range st.users {
			if u.Email == email {
				cp := cloneUser(u)
				found = &cp
				return
			}
		}
	})
	return found, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, u models.User) error {
	return m.write(ctx, func(st *memState) error {
		if _, ok := st.users[u.ID]; ok {
			return apperr.Duplicate("User already exists")
		}
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return apperr.Duplicate("User already exists")
			}
		}
		st.users[u.ID] = cloneUser(u)
		return nil
	})
}

func (m *MemoryStore) UpdateUserContact(ctx context.Context, id, name, phone string) error {
	return m.write(ctx, func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("User")
		}
		u.Name, u.Phone = name, phone
		st.users[id] = u
		return nil
	})
}

// PutUser inserts or replaces a user. Used to seed sales reps and admins.
func (m *MemoryStore) PutUser(u models.User) {
	_ = m.write(context.Background(), func(st *memState) error {
		st.users[u.ID] = cloneUser(u)
		return nil
	})
}

func (m *MemoryStore) ListSalesReps(context.Context) ([]models.User, error) {
	var out []models.User
	m.read(func(st *memState) {
		for _, u := range st.users {
			if u.Role == models.RoleSalesRep {
				out = append(out, cloneUser(u))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// leads

func (m *MemoryStore) CreateLead(ctx context.Context, l models.Lead) error {
	return m.write(ctx, func(st *memState) error {
		if _, ok := st.leads[l.ID]; ok {
			return apperr.Duplicate("Lead already exists")
		}
		if err := checkLeadRefs(st, l); err != nil {
			return err
		}
		st.leads[l.ID] = cloneLead(l)
		return nil
	})
}

func checkLeadRefs(st *memState, l models.Lead) error {
	if l.UserID != nil {
		if _, ok := st.users[*l.UserID]; !ok {
			return fmt.Errorf("lead: user %s does not exist", *l.UserID)
		}
	}
	if l.AssignedTo != nil {
		if _, ok := st.users[*l.AssignedTo]; !ok {
			return fmt.Errorf("lead: sales rep %s does not exist", *l.AssignedTo)
		}
	}
	if l.EndDate != nil && l.EndDate.Before(l.TravelDate) {
		return fmt.Errorf("lead: end date before travel date")
	}
	return nil
}

func (m *MemoryStore) GetLead(_ context.Context, id string) (models.Lead, error) {
	var (
		l  models.Lead
		ok bool
	)
	m.read(func(st *memState) { l, ok = st.leads[id] })
	if !ok {
		return models.Lead{}, apperr.NotFound("Lead")
	}
	return cloneLead(l), nil
}

func (m *MemoryStore) UpdateLead(ctx context.Context, l models.Lead) error {
	return m.write(ctx, func(st *memState) error {
		existing, ok := st.leads[l.ID]
		if !ok {
			return apperr.NotFound("Lead")
		}
		if err := checkLeadRefs(st, l); err != nil {
			return err
		}
		l.CreatedAt = existing.CreatedAt
		st.leads[l.ID] = cloneLead(l)
		return nil
	})
}

func (m *MemoryStore) DeleteLead(ctx context.Context, id string) error {
	return m.write(ctx, func(st *memState) error {
		if _, ok := st.leads[id]; !ok {
			return apperr.NotFound("Lead")
		}
		delete(st.leads, id)
		for itID, it := range st.itineraries {
			if it.LeadID == id {
				delete(st.itineraries, itID)
			}
		}
		return nil
	})
}

func (m *MemoryStore) ListLeads(_ context.Context, f models.LeadFilter) ([]models.Lead, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	q := strings.ToLower(f.Q)

	var matched []models.Lead
	m.read(func(st *memState) {
		for _, l := range st.leads {
			if f.Status != "" && string(l.Status) != f.Status {
				continue
			}
			if f.AssignedTo != "" && (l.AssignedTo == nil || *l.AssignedTo != f.AssignedTo) {
				continue
			}
			if q != "" && !strings.Contains(strings.ToLower(l.Name), q) &&
				!strings.Contains(strings.ToLower(l.Email), q) &&
				!strings.Contains(strings.ToLower(l.Destination), q) {
				continue
			}
			matched = append(matched, cloneLead(l))
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	out := []models.Lead{}
	if f.Offset < total {
		end := f.Offset + f.Limit
		if end > total {
			end = total
		}
		out = append(out, matched[f.Offset:end]...)
	}
	return out, total, nil
}

func (m *MemoryStore) CountOpenLeadsByRep(_ context.Context, repIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(repIDs))
	for _, id := range repIDs {
		out[id] = 0
	}
	m.read(func(st *memState) {
		for _, l := range st.leads {
			if l.AssignedTo == nil || !l.Status.Open() {
				continue
			}
			if _, ok := out[*l.AssignedTo]; ok {
				out[*l.AssignedTo]++
			}
		}
	})
	return out, nil
}

// packages

func (m *MemoryStore) CreatePackage(ctx context.Context, p models.Package) error {
	return m.write(ctx, func(st *memState) error {
		if _, ok := st.packages[p.ID]; ok {
			return apperr.Duplicate("Package already exists")
		}
		if err := checkPackageLineage(st, p); err != nil {
			return err
		}
		st.packages[p.ID] = clonePackage(p)
		return nil
	})
}

func checkPackageLineage(st *memState, p models.Package) error {
	if !p.IsCustomized {
		return nil
	}
	if p.OriginalPackageID == nil || p.CustomizationSequence < 1 {
		return fmt.Errorf("package: customized package requires an original and a sequence")
	}
	if _, ok := st.packages[*p.OriginalPackageID]; !ok {
		return fmt.Errorf("package: original package %s does not exist", *p.OriginalPackageID)
	}
	return nil
}

func (m *MemoryStore) GetPackage(_ context.Context, id string) (models.Package, error) {
	var (
		p  models.Package
		ok bool
	)
	m.read(func(st *memState) { p, ok = st.packages[id] })
	if !ok {
		return models.Package{}, apperr.NotFound("Package")
	}
	return clonePackage(p), nil
}

func (m *MemoryStore) UpdatePackage(ctx context.Context, p models.Package) error {
	return m.write(ctx, func(st *memState) error {
		existing, ok := st.packages[p.ID]
		if !ok {
			return apperr.NotFound("Package")
		}
		if err := checkPackageLineage(st, p); err != nil {
			return err
		}
		p.CreatedAt = existing.CreatedAt
		st.packages[p.ID] = clonePackage(p)
		return nil
	})
}

func (m *MemoryStore) ListPackages(_ context.Context, f models.PackageFilter) ([]models.Package, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	var matched []models.Package
	m.read(func(st *memState) {
		for _, p := range st.packages {
			if f.Customized != nil && p.IsCustomized != *f.Customized {
				continue
			}
			if f.Destination != "" && !strings.EqualFold(p.Destination, f.Destination) {
				continue
			}
			if f.Category != "" && p.Category != f.Category {
				continue
			}
			if f.LeadID != "" && (p.CustomizedForLeadID == nil || *p.CustomizedForLeadID != f.LeadID) {
				continue
			}
			matched = append(matched, clonePackage(p))
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	out := []models.Package{}
	if f.Offset < len(matched) {
		end := f.Offset + f.Limit
		if end > len(matched) {
			end = len(matched)
		}
		out = append(out, matched[f.Offset:end]...)
	}
	return out, nil
}

// itineraries

func (m *MemoryStore) CreateItinerary(ctx context.Context, it models.ManualItinerary) error {
	return m.write(ctx, func(st *memState) error {
		if _, ok := st.leads[it.LeadID]; !ok {
			return fmt.Errorf("manual itinerary: lead %s does not exist", it.LeadID)
		}
		for _, existing := range st.itineraries {
			if existing.ID == it.ID || existing.LeadID == it.LeadID {
				return apperr.Duplicate("Manual itinerary already exists")
			}
		}
		st.itineraries[it.ID] = cloneItinerary(it)
		return nil
	})
}

func (m *MemoryStore) GetItinerary(_ context.Context, id string) (models.ManualItinerary, error) {
	var (
		it models.ManualItinerary
		ok bool
	)
	m.read(func(st *memState) { it, ok = st.itineraries[id] })
	if !ok {
		return models.ManualItinerary{}, apperr.NotFound("Manual itinerary")
	}
	return cloneItinerary(it), nil
}

func (m *MemoryStore) GetItineraryByLead(_ context.Context, leadID string) (models.ManualItinerary, error) {
	var (
		found models.ManualItinerary
		ok    bool
	)
	m.read(func(st *memState) {
		for _, it := range st.itineraries {
			if it.LeadID == leadID {
				found, ok = it, true
				return
			}
		}
	})
	if !ok {
		return models.ManualItinerary{}, apperr.NotFound("Manual itinerary")
	}
	return cloneItinerary(found), nil
}

func (m *MemoryStore) UpdateItinerary(ctx context.Context, it models.ManualItinerary) error {
	return m.write(ctx, func(st *memState) error {
		existing, ok := st.itineraries[it.ID]
		if !ok {
			return apperr.NotFound("Manual itinerary")
		}
		it.LeadID = existing.LeadID
		it.CreatedBy = existing.CreatedBy
		it.CreatedAt = existing.CreatedAt
		st.itineraries[it.ID] = cloneItinerary(it)
		return nil
	})
}

func (m *MemoryStore) DeleteItinerary(ctx context.Context, id string) error {
	return m.write(ctx, func(st *memState) error {
		if _, ok := st.itineraries[id]; !ok {
			return apperr.NotFound("Manual itinerary")
		}
		delete(st.itineraries, id)
		return nil
	})
}

// settings

func (m *MemoryStore) GetAssignmentSettings(context.Context) (models.AssignmentSettings, error) {
	st := models.DefaultAssignmentSettings()
	m.read(func(s *memState) {
		if s.settings != nil {
			st = cloneSettings(*s.settings)
		}
	})
	return st, nil
}

func (m *MemoryStore) SaveAssignmentSettings(ctx context.Context, in models.AssignmentSettings) error {
	return m.write(ctx, func(s *memState) error {
		next := cloneSettings(in)
		if s.settings != nil {
			next.RoundRobinIndex = s.settings.RoundRobinIndex
		} else {
			next.RoundRobinIndex = 0
		}
		s.settings = &next
		return nil
	})
}

func (m *MemoryStore) TrySwapRoundRobinIndex(ctx context.Context, old, next int) (bool, error) {
	swapped := false
	err := m.write(ctx, func(s *memState) error {
		if s.settings == nil {
			d := models.DefaultAssignmentSettings()
			s.settings = &d
		}
		if s.settings.RoundRobinIndex != old {
			return nil
		}
		s.settings.RoundRobinIndex = next
		s.settings.UpdatedAt = time.Now().UTC()
		swapped = true
		return nil
	})
	return swapped, err
}

// notifications

func (m *MemoryStore) EnqueueNotification(ctx context.Context, n models.Notification) error {
	return m.write(ctx, func(st *memState) error {
		if _, ok := st.notifications[n.ID]; ok {
			return apperr.Duplicate("Notification already exists")
		}
		st.notifications[n.ID] = cloneNotification(n)
		return nil
	})
}

func (m *MemoryStore) ClaimDueNotifications(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := m.write(ctx, func(st *memState) error {
		for _, n := range st.notifications {
			if n.Status == models.NotificationPending && !n.NextAttemptAt.After(now) {
				out = append(out, n)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].NextAttemptAt.Equal(out[j].NextAttemptAt) {
				return out[i].NextAttemptAt.Before(out[j].NextAttemptAt)
			}
			return out[i].ID < out[j].ID
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		for i := range out {
			n := st.notifications[out[i].ID]
			n.NextAttemptAt = now.Add(lease)
			st.notifications[n.ID] = n
			out[i] = cloneNotification(n)
		}
		return nil
	})
	return out, err
}

func (m *MemoryStore) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	return m.write(ctx, func(st *memState) error {
		n, ok := st.notifications[id]
		if !ok {
			return apperr.NotFound("Notification")
		}
		n.Status = models.NotificationSent
		n.Attempts++
		n.LastError = ""
		n.SentAt = &at
		st.notifications[id] = n
		return nil
	})
}

func (m *MemoryStore) MarkNotificationRetry(ctx context.Context, id string, next time.Time, lastErr string, failed bool) error {
	return m.write(ctx, func(st *memState) error {
		n, ok := st.notifications[id]
		if !ok {
			return apperr.NotFound("Notification")
		}
		n.Attempts++
		n.NextAttemptAt = next
		n.LastError = lastErr
		if failed {
			n.Status = models.NotificationFailed
		}
		st.notifications[id] = n
		return nil
	})
}

func (m *MemoryStore) CountPendingNotifications(context.Context) (int, error) {
	count := 0
	m.read(func(st *memState) {
		for _, n := range st.notifications {
			if n.Status == models.NotificationPending {
				count++
			}
		}
	})
	return count, nil
}

// Notifications returns every notification, oldest first.
func (m *MemoryStore) Notifications() []models.Notification {
	var out []models.Notification
	m.read(func(st *memState) {
		for _, n := range st.notifications {
			out = append(out, cloneNotification(n))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// deep copies

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUser(u models.User) models.User {
	u.LastLoginAt = cloneTime(u.LastLoginAt)
	u.LastActivityAt = cloneTime(u.LastActivityAt)
	return u
}

func cloneLead(l models.Lead) models.Lead {
	l.UserID = cloneStringPtr(l.UserID)
	l.AssignedTo = cloneStringPtr(l.AssignedTo)
	l.EndDate = cloneTime(l.EndDate)
	if l.Remarks != nil {
		l.Remarks = append([]models.Remark{}, l.Remarks...)
	} else {
		l.Remarks = []models.Remark{}
	}
	return l
}

func cloneImages(in []models.Image) []models.Image {
	if in == nil {
		return nil
	}
	return append([]models.Image{}, in...)
}

func cloneDays(in []models.Day) []models.Day {
	if in == nil {
		return nil
	}
	out := make([]models.Day, len(in))
	for i, d := range in {
		d.Locations = cloneStrings(d.Locations)
		d.Activities = cloneStrings(d.Activities)
		d.Places = cloneStrings(d.Places)
		d.Images = cloneImages(d.Images)
		if d.Accommodation != nil {
			a := *d.Accommodation
			d.Accommodation = &a
		}
		out[i] = d
	}
	return out
}

func clonePackage(p models.Package) models.Package {
	p.Inclusions = cloneStrings(p.Inclusions)
	p.Exclusions = cloneStrings(p.Exclusions)
	p.Days = cloneDays(p.Days)
	p.Images = cloneImages(p.Images)
	p.OriginalPackageID = cloneStringPtr(p.OriginalPackageID)
	p.CustomizedForLeadID = cloneStringPtr(p.CustomizedForLeadID)
	p.SupersededAt = cloneTime(p.SupersededAt)
	return p
}

func cloneItinerary(it models.ManualItinerary) models.ManualItinerary {
	it.Days = cloneDays(it.Days)
	if it.Days == nil {
		it.Days = []models.Day{}
	}
	it.CreatedBy = cloneStringPtr(it.CreatedBy)
	return it
}

func cloneSettings(s models.AssignmentSettings) models.AssignmentSettings {
	s.EnabledSalesReps = cloneStrings(s.EnabledSalesReps)
	if s.EnabledSalesReps == nil {
		s.EnabledSalesReps = []string{}
	}
	return s
}

func cloneNotification(n models.Notification) models.Notification {
	n.Payload = append(json.RawMessage(nil), n.Payload...)
	n.SentAt = cloneTime(n.SentAt)
	return n
}
