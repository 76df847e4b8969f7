package service

import (
	"context"
	"time"

	"github.com/tripdesk/backend/internal/models"
)

// TxRunner runs fn in a transaction. Store calls made with the ctx handed to
// fn join that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u models.User) error
	UpdateUserContact(ctx context.Context, id, name, phone string) error
}

type RepStore interface {
	ListSalesReps(ctx context.Context) ([]models.User, error)
	CountOpenLeadsByRep(ctx context.Context, repIDs []string) (map[string]int, error)
}

type SettingsStore interface {
	GetAssignmentSettings(ctx context.Context) (models.AssignmentSettings, error)
	SaveAssignmentSettings(ctx context.Context, st models.AssignmentSettings) error
	TrySwapRoundRobinIndex(ctx context.Context, old, next int) (bool, error)
}

type LeadStore interface {
	CreateLead(ctx context.Context, l models.Lead) error
	GetLead(ctx context.Context, id string) (models.Lead, error)
	UpdateLead(ctx context.Context, l models.Lead) error
	DeleteLead(ctx context.Context, id string) error
	ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, int, error)
}

type PackageStore interface {
	CreatePackage(ctx context.Context, p models.Package) error
	GetPackage(ctx context.Context, id string) (models.Package, error)
	UpdatePackage(ctx context.Context, p models.Package) error
	ListPackages(ctx context.Context, f models.PackageFilter) ([]models.Package, error)
}

type ItineraryStore interface {
	CreateItinerary(ctx context.Context, it models.ManualItinerary) error
	GetItinerary(ctx context.Context, id string) (models.ManualItinerary, error)
	GetItineraryByLead(ctx context.Context, leadID string) (models.ManualItinerary, error)
	UpdateItinerary(ctx context.Context, it models.ManualItinerary) error
	DeleteItinerary(ctx context.Context, id string) error
}

type NotificationStore interface {
	EnqueueNotification(ctx context.Context, n models.Notification) error
}

// Store is everything the services need from persistence. Both db.Store and
// db.MemoryStore satisfy it.
type Store interface {
	TxRunner
	UserStore
	RepStore
	SettingsStore
	LeadStore
	PackageStore
	ItineraryStore
	NotificationStore
	Ping(ctx context.Context) error
}

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
