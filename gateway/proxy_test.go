package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-election-system/shared/middleware"
	"github.com/pavitra93/go-election-system/shared/models"
)

const gatewaySecret = "gateway-test-secret-value"

type seen struct {
	path     string
	query    string
	body     string
	tenantID string
}

func backend(t *testing.T, name string, got *seen) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		*got = seen{path: r.URL.Path, query: r.URL.RawQuery, body: string(body), tenantID: r.Header.Get("X-Tenant-ID")}
		if strings.HasPrefix(r.URL.Path, "/api/verify-email/") {
			http.Redirect(w, r, "https://vote.example.edu/ballot#capability=abc", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend", name)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGateway(t *testing.T) (*gin.Engine, *seen, *seen) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authSeen, electionSeen := &seen{}, &seen{}
	clients := &ServiceClients{
		AuthService:     NewServiceClient("auth_service", backend(t, "auth", authSeen).URL),
		ElectionService: NewServiceClient("election_service", backend(t, "election", electionSeen).URL),
	}
	return setupRouter(clients, middleware.NewAuthMiddleware(gatewaySecret, nil)), authSeen, electionSeen
}

func TestGatewayProxiesVoterRoutes(t *testing.T) {
	r, _, election := newGateway(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/elections/abc/votes?x=1", strings.NewReader(`{"matric_id":"SVG001"}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "election", w.Header().Get("X-Backend"))
	assert.Equal(t, "/api/elections/abc/votes", election.path)
	assert.Equal(t, "x=1", election.query)
	assert.Equal(t, `{"matric_id":"SVG001"}`, election.body)
}

func TestGatewayPassesRedirectThrough(t *testing.T) {
	r, _, _ := newGateway(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/verify-email/"+strings.Repeat("a", 64), nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://vote.example.edu/ballot#capability=abc", w.Header().Get("Location"))
}

func TestGatewayGuardsAdminRoutes(t *testing.T) {
	r, _, election := newGateway(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/partitions", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tenant := uuid.New()
	token, _, err := middleware.SignAdminToken(gatewaySecret, models.AdminProfile{TenantID: tenant}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/partitions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, tenant.String(), election.tenantID)
}

func TestGatewayHealth(t *testing.T) {
	r, _, _ := newGateway(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "election_service")
}
