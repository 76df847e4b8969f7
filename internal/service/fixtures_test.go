package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/backend/internal/db"
	"github.com/tripdesk/backend/internal/models"
)

type services struct {
	store       *db.MemoryStore
	assigner    *Assigner
	leads       *LeadService
	customizer  *Customizer
	itineraries *ItineraryService
	intake      *IntakeService
	settings    *AssignmentSettingsService
}

func newServices(t *testing.T) *services {
	t.Helper()
	store := db.NewMemoryStore()
	assigner := newAssigner(store)
	log := zerolog.Nop()
	return &services{
		store:    store,
		assigner: assigner,
		leads: &LeadService{Tx: store, Leads: store, Users: store, Packages: store,
			Notifications: store, Assigner: assigner, Logger: log, Now: fixedClock},
		customizer:  &Customizer{Tx: store, Packages: store, Leads: store, Logger: log, Now: fixedClock},
		itineraries: &ItineraryService{Tx: store, Leads: store, Itineraries: store, Logger: log, Now: fixedClock},
		intake: &IntakeService{Tx: store, Users: store, Leads: store, Itineraries: store,
			Notifications: store, Assigner: assigner, Logger: log, Now: fixedClock},
		settings: &AssignmentSettingsService{Store: store, Now: fixedClock},
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func (s *services) catalogPackage(t *testing.T, name string) models.Package {
	t.Helper()
	price := decimal.RequireFromString("1500.00")
	pkg, err := s.customizer.CreateCatalogPackage(context.Background(), PackageInput{
		Name:        strPtr(name),
		Category:    strPtr("beach"),
		Destination: strPtr("Bali"),
		Description: strPtr("Sun and sand"),
		Price:       &price,
		Days: []models.Day{
			{Title: "Arrival", Activities: []string{"Check in"}},
			{Activities: []string{"Snorkelling", "Spa"}},
		},
	})
	require.NoError(t, err)
	return pkg
}

func (s *services) lead(t *testing.T, name string) models.Lead {
	t.Helper()
	l, err := s.leads.Create(context.Background(), LeadInput{
		Name:        name,
		Email:       name + "@example.com",
		Destination: "Bali",
		TravelDate:  testNow.AddDate(0, 1, 0),
	}, Actor{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	return l
}
