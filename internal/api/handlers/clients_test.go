package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/handlers"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupClientTestRouter wires the client routes with the same auth and
// permission gates the real router uses.
func setupClientTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	engine := authz.NewEngine(tc.DB, discardLogger(), authz.DefaultCacheTTL)
	auditLogger := audit.NewLogger(tc.DB, nil, discardLogger())
	handler := handlers.NewClientHandler(tc.DB, auditLogger)

	r := chi.NewRouter()
	r.Use(middleware.Auth(tc.JWTService))
	r.Route("/api/v1/clients", func(r chi.Router) {
		r.With(middleware.RequirePermission(engine, "client:read")).Get("/", handler.List)
		r.With(middleware.RequirePermission(engine, "client:read")).Get("/{id}", handler.Get)
		r.With(middleware.RequirePermission(engine, "client:create")).Post("/", handler.Create)
		r.With(middleware.RequirePermission(engine, "client:update")).Put("/{id}", handler.Update)
		r.With(middleware.RequirePermission(engine, "client:delete")).Delete("/{id}", handler.Delete)
	})

	return r, tc
}

func TestClientHandler_Create(t *testing.T) {
	router, tc := setupClientTestRouter(t)
	defer tc.Cleanup()

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
	}{
		{
			name:       "create client",
			body:       map[string]interface{}{"name": "Acme Corp", "email": "billing@acme.test"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing name",
			body:       map[string]interface{}{"email": "billing@acme.test"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid email",
			body:       map[string]interface{}{"name": "Acme", "email": "not-an-email"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.AuthenticatedRequest(t, http.MethodPost, "/api/v1/clients", tt.body, tc.Token)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			testutil.AssertStatus(t, rr, tt.wantStatus)
		})
	}
}

func TestClientHandler_Create_StampsOrganization(t *testing.T) {
	router, tc := setupClientTestRouter(t)
	defer tc.Cleanup()

	req := testutil.AuthenticatedRequest(t, http.MethodPost, "/api/v1/clients",
		map[string]interface{}{"name": "Acme Corp"}, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var resp handlers.ClientResponse
	testutil.ParseJSONResponse(t, rr, &resp)

	var stored models.Client
	require.NoError(t, tc.DB.First(&stored, "id = ?", resp.ID).Error)
	assert.Equal(t, tc.Org.ID, stored.OrganizationID)

	// Mutations leave an audit trail.
	var n int64
	require.NoError(t, tc.DB.Model(&models.AuditLog{}).
		Where("organization_id = ? AND resource = ? AND action = ?", tc.Org.ID, "client", "create").
		Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

// A record in another organization responds exactly like a missing one.
func TestClientHandler_CrossTenantLooksLikeNotFound(t *testing.T) {
	router, tc := setupClientTestRouter(t)
	defer tc.Cleanup()

	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	foreign := testutil.CreateTestClient(t, tc.DB, otherOrg.ID, "Foreign Corp")

	getForeign := testutil.AuthenticatedRequest(t, http.MethodGet, "/api/v1/clients/"+foreign.ID.String(), nil, tc.Token)
	getMissing := testutil.AuthenticatedRequest(t, http.MethodGet, "/api/v1/clients/"+uuid.New().String(), nil, tc.Token)

	rrForeign := httptest.NewRecorder()
	rrMissing := httptest.NewRecorder()
	router.ServeHTTP(rrForeign, getForeign)
	router.ServeHTTP(rrMissing, getMissing)

	testutil.AssertStatus(t, rrForeign, http.StatusNotFound)
	testutil.AssertStatus(t, rrMissing, http.StatusNotFound)
	assert.Equal(t, rrForeign.Body.String(), rrMissing.Body.String())

	// Same for mutations, and the foreign row survives.
	update := testutil.AuthenticatedRequest(t, http.MethodPut, "/api/v1/clients/"+foreign.ID.String(),
		map[string]interface{}{"name": "Hijacked"}, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, update)
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	var stored models.Client
	require.NoError(t, tc.DB.First(&stored, "id = ?", foreign.ID).Error)
	assert.Equal(t, "Foreign Corp", stored.Name)
}

func TestClientHandler_ListIsScoped(t *testing.T) {
	router, tc := setupClientTestRouter(t)
	defer tc.Cleanup()

	testutil.CreateTestClient(t, tc.DB, tc.Org.ID, "Mine")
	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	testutil.CreateTestClient(t, tc.DB, otherOrg.ID, "Theirs")

	req := testutil.AuthenticatedRequest(t, http.MethodGet, "/api/v1/clients", nil, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp dto.PaginatedResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, int64(1), resp.Total)
}

// A viewer can read but is rejected with 403 before the handler runs on
// writes. A user with no membership gets 403 on everything.
func TestClientHandler_PermissionGates(t *testing.T) {
	router, tc := setupClientTestRouter(t)
	defer tc.Cleanup()

	viewer := testutil.CreateTestUser(t, tc.DB)
	testutil.CreateTestMembership(t, tc.DB, tc.Org, viewer, "viewer")
	viewerToken := testutil.GenerateTestToken(t, tc.JWTService, viewer, tc.Org.ID)

	outsider := testutil.CreateTestUser(t, tc.DB)
	outsiderToken := testutil.GenerateTestToken(t, tc.JWTService, outsider, tc.Org.ID)

	t.Run("viewer can list", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, http.MethodGet, "/api/v1/clients", nil, viewerToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("viewer cannot create", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, http.MethodPost, "/api/v1/clients",
			map[string]interface{}{"name": "Nope"}, viewerToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("no membership denies reads", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, http.MethodGet, "/api/v1/clients", nil, outsiderToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, http.MethodGet, "/api/v1/clients", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestClientHandler_Delete(t *testing.T) {
	router, tc := setupClientTestRouter(t)
	defer tc.Cleanup()

	client := testutil.CreateTestClient(t, tc.DB, tc.Org.ID, "Doomed")

	req := testutil.AuthenticatedRequest(t, http.MethodDelete, "/api/v1/clients/"+client.ID.String(), nil, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var n int64
	require.NoError(t, tc.DB.Model(&models.Client{}).Where("id = ?", client.ID).Count(&n).Error)
	assert.Zero(t, n)
}
