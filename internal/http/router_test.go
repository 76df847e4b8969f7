package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/backend/internal/auth"
	"github.com/tripdesk/backend/internal/config"
	"github.com/tripdesk/backend/internal/db"
	"github.com/tripdesk/backend/internal/models"
	"github.com/tripdesk/backend/internal/service"
)

const testSecret = "router-test-secret"

type testAPI struct {
	t      *testing.T
	store  *db.MemoryStore
	engine *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Env:                  "test",
		JWTSecret:            testSecret,
		CORSAllowed:          "*",
		WebsiteRatePerMinute: 1000,
		AssignmentCASRetries: 3,
		RepInactivityWindow:  30 * 24 * time.Hour,
	}
	store := db.NewMemoryStore()
	h := NewHandler(cfg, store, zerolog.Nop())
	return &testAPI{t: t, store: store, engine: Router(cfg, h, zerolog.Nop())}
}

func (a *testAPI) token(id, role string) string {
	a.t.Helper()
	tok, err := auth.IssueToken([]byte(testSecret), auth.Principal{ID: id, Role: role}, time.Hour, time.Now())
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestWebsiteSubmissionEndToEnd(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/manual-itineraries/website", "", map[string]any{
		"email":      "a@b.com",
		"travelDate": "2025-06-01",
		"days": []map[string]any{
			{"dayNumber": 1, "title": "Day 1", "activities": []string{"City Tour"}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res service.IntakeResult
	decodeInto(t, w, &res)
	require.NotEmpty(t, res.LeadID)
	require.NotEmpty(t, res.ManualItineraryID)
	assert.Nil(t, res.SalesRepID)

	w = api.do(http.MethodGet, "/api/manual-itineraries/lead/"+res.LeadID, api.token("admin-1", models.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var it models.ManualItinerary
	decodeInto(t, w, &it)
	assert.Equal(t, res.ManualItineraryID, it.ID)
	require.Len(t, it.Days, 1)
	assert.Equal(t, []string{"City Tour"}, it.Days[0].Activities)
	assert.Equal(t, 1, it.Metadata.TotalActivities)
	assert.Equal(t, 1, it.Version)
}

func TestWebsiteSubmissionWithoutDaysCreatesNothing(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/manual-itineraries/website", "", map[string]any{
		"email":      "nobody@example.com",
		"travelDate": "2025-06-01",
		"days":       []any{},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Status string `json:"status"`
		Errors []struct {
			Field string `json:"field"`
		} `json:"errors"`
	}
	decodeInto(t, w, &body)
	assert.Equal(t, "fail", body.Status)
	require.NotEmpty(t, body.Errors)
	assert.Equal(t, "days", body.Errors[0].Field)

	u, err := api.store.FindUserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
	_, total, err := api.store.ListLeads(context.Background(), models.LeadFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestWebsiteSubmissionRejectsBadDate(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodPost, "/api/manual-itineraries/website", "", map[string]any{
		"email":      "a@b.com",
		"travelDate": "next tuesday",
		"days":       []map[string]any{{"activities": []string{"x"}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "travelDate")
}

func TestWebsiteSubmissionAutoAssignsAndQueuesEmail(t *testing.T) {
	api := newTestAPI(t)
	now := time.Now().UTC()
	api.store.PutUser(models.User{ID: "rep-1", Email: "rep1@agency.test", Name: "Rep One", Role: models.RoleSalesRep, IsActive: true, LastLoginAt: &now, CreatedAt: now})
	admin := api.token("admin-1", models.RoleAdmin)

	w := api.do(http.MethodPut, "/api/settings/assignment", admin, map[string]any{
		"assignmentMode": "auto",
		"autoStrategy":   "round_robin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/manual-itineraries/website", "", map[string]any{
		"name":       "Asha",
		"email":      "Asha@Example.com ",
		"travelDate": "2025-06-01",
		"endDate":    "2025-06-03",
		"days":       []map[string]any{{"activities": []string{"Beach"}}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res service.IntakeResult
	decodeInto(t, w, &res)
	require.NotNil(t, res.SalesRepID)
	assert.Equal(t, "rep-1", *res.SalesRepID)

	notes := api.store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "rep1@agency.test", notes[0].Recipient)
	assert.Equal(t, models.NotificationPending, notes[0].Status)

	// the assigned rep can read the lead
	w = api.do(http.MethodGet, "/api/leads/"+res.LeadID, api.token("rep-1", models.RoleSalesRep), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lead models.Lead
	decodeInto(t, w, &lead)
	assert.Equal(t, "asha@example.com", lead.Email)
	id, ok := lead.Source.ManualItineraryID()
	assert.True(t, ok)
	assert.Equal(t, res.ManualItineraryID, id)

	// another rep cannot
	w = api.do(http.MethodGet, "/api/leads/"+res.LeadID, api.token("rep-2", models.RoleSalesRep), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoutesRequireAuthAndRole(t *testing.T) {
	api := newTestAPI(t)
	rep := api.token("rep-1", models.RoleSalesRep)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/leads", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/leads", rep, nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/settings/assignment", rep, nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/api/leads/x", rep, nil).Code)
	assert.Equal(t, http.StatusForbidden,
		api.do(http.MethodGet, "/api/leads", api.token("c-1", models.RoleCustomer), nil).Code)
}

func TestCustomizeThroughPackagesEndpoint(t *testing.T) {
	api := newTestAPI(t)
	admin := api.token("admin-1", models.RoleAdmin)

	w := api.do(http.MethodPost, "/api/packages", admin, map[string]any{
		"name":        "Bali Getaway",
		"category":    "beach",
		"destination": "Bali",
		"description": "Five days in Bali",
		"price":       "1200.50",
		"days": []map[string]any{
			{"title": "Arrival", "transport": "", "accommodation": map[string]any{"type": "", "name": ""}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var catalog models.Package
	decodeInto(t, w, &catalog)
	assert.False(t, catalog.IsCustomized)
	require.Len(t, catalog.Days, 1)
	assert.Empty(t, catalog.Days[0].Transport)
	assert.Nil(t, catalog.Days[0].Accommodation)

	w = api.do(http.MethodPost, "/api/leads", admin, map[string]any{
		"name":        "Ravi",
		"email":       "ravi@example.com",
		"destination": "Bali",
		"travelDate":  "2025-07-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lead models.Lead
	decodeInto(t, w, &lead)

	w = api.do(http.MethodPost, "/api/packages", admin, map[string]any{
		"customizeForLeadId": lead.ID,
		"originalPackageId":  catalog.ID,
		"price":              "999",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var custom models.Package
	decodeInto(t, w, &custom)
	assert.Equal(t, "Bali Getaway (Customized)", custom.Name)
	assert.Equal(t, 1, custom.CustomizationSequence)
	require.NotNil(t, custom.OriginalPackageID)
	assert.Equal(t, catalog.ID, *custom.OriginalPackageID)

	w = api.do(http.MethodPut, "/api/customized-packages/"+custom.ID, admin, map[string]any{
		"description":     "Tailored",
		"expectedVersion": custom.Version,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPut, "/api/customized-packages/"+custom.ID, admin, map[string]any{
		"description":     "Stale edit",
		"expectedVersion": custom.Version,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodGet, "/api/leads/"+lead.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeInto(t, w, &lead)
	id, ok := lead.Source.CustomizedPackageID()
	assert.True(t, ok)
	assert.Equal(t, custom.ID, id)
	assert.Equal(t, "Bali Getaway (Customized)", lead.PackageName)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.do(http.MethodGet, "/healthz", "", nil)
	w := api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tripdesk_http_requests_total")
}

func TestPermissionGrantOpensAdminRoute(t *testing.T) {
	api := newTestAPI(t)
	api.store.PutUser(models.User{ID: "rep-1", Email: "rep-1@agency.test", Name: "Rep One", Role: models.RoleSalesRep, IsActive: true})

	w := api.do(http.MethodPost, "/api/leads", api.token("admin-1", models.RoleAdmin), map[string]any{
		"name": "Dana", "email": "dana@example.com", "destination": "Kyoto", "travelDate": "2025-09-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lead models.Lead
	decodeInto(t, w, &lead)

	body := map[string]string{"salesRepId": "rep-1"}
	plain := api.token("rep-2", models.RoleSalesRep)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPut, "/api/leads/"+lead.ID+"/assign", plain, body).Code)

	granted, err := auth.IssueToken([]byte(testSecret), auth.Principal{
		ID: "rep-2", Role: models.RoleSalesRep, Permissions: []string{auth.PermLeadsAssign},
	}, time.Hour, time.Now())
	require.NoError(t, err)
	w = api.do(http.MethodPut, "/api/leads/"+lead.ID+"/assign", granted, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeInto(t, w, &lead)
	require.NotNil(t, lead.AssignedTo)
	assert.Equal(t, "rep-1", *lead.AssignedTo)

	// the grant is scoped: deleting still needs its own permission
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/api/leads/"+lead.ID, granted, nil).Code)
}

func TestRepCannotMutateAnotherRepsLead(t *testing.T) {
	api := newTestAPI(t)
	admin := api.token("admin-1", models.RoleAdmin)
	api.store.PutUser(models.User{ID: "rep-1", Email: "rep-1@agency.test", Name: "Rep One", Role: models.RoleSalesRep, IsActive: true})

	w := api.do(http.MethodPost, "/api/leads", admin, map[string]any{
		"name": "Mei", "email": "mei@example.com", "destination": "Bali", "travelDate": "2025-08-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lead models.Lead
	decodeInto(t, w, &lead)
	w = api.do(http.MethodPut, "/api/leads/"+lead.ID+"/assign", admin, map[string]string{"salesRepId": "rep-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/manual-itineraries/lead/"+lead.ID, admin, map[string]any{
		"days": []map[string]any{{"title": "Arrival"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var itin models.ManualItinerary
	decodeInto(t, w, &itin)

	w = api.do(http.MethodPost, "/api/packages", admin, map[string]any{
		"name": "Bali Getaway", "category": "beach", "destination": "Bali", "description": "Five days",
		"days": []map[string]any{{"title": "Arrival"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var catalog models.Package
	decodeInto(t, w, &catalog)
	w = api.do(http.MethodPost, "/api/leads/"+lead.ID+"/customize", admin, map[string]any{"packageId": catalog.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res service.CustomizeResult
	decodeInto(t, w, &res)

	other := api.token("rep-2", models.RoleSalesRep)
	owner := api.token("rep-1", models.RoleSalesRep)

	w = api.do(http.MethodPut, "/api/customized-packages/"+res.Package.ID, other, map[string]any{"description": "hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = api.do(http.MethodDelete, "/api/manual-itineraries/"+itin.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	stored, err := api.store.GetPackage(context.Background(), res.Package.ID)
	require.NoError(t, err)
	assert.Equal(t, "Five days", stored.Description)
	_, err = api.store.GetItinerary(context.Background(), itin.ID)
	require.NoError(t, err)

	w = api.do(http.MethodPut, "/api/customized-packages/"+res.Package.ID, owner, map[string]any{"description": "Tailored"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(http.MethodDelete, "/api/manual-itineraries/"+itin.ID, owner, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
