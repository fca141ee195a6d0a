package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-election-system/shared/models"
	"github.com/pavitra93/go-election-system/shared/utils"
)

const testSecret = "middleware-test-secret"

type fakeSessions struct {
	live map[string]bool
	err  error
}

func (s *fakeSessions) GetAdminSession(_ context.Context, token string) (*models.AdminSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.live[token] {
		return nil, utils.ErrSessionNotFound
	}
	return &models.AdminSession{SessionID: "s1"}, nil
}

func newAuthRouter(am *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", am.RequireAuth(), func(c *gin.Context) {
		id, err := GetTenantIDFromContext(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	r.GET("/tenants/:tenant_id", am.RequireAuth(), am.RequireTenantAccess(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	tenant := uuid.New()
	token, _, err := SignAdminToken(testSecret, models.AdminProfile{TenantID: tenant, Email: "admin@example.edu"}, time.Hour)
	require.NoError(t, err)

	r := newAuthRouter(NewAuthMiddleware(testSecret, nil))

	w := get(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenant.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "not-a-jwt").Code)

	forged, _, err := SignAdminToken("another-secret-entirely", models.AdminProfile{TenantID: tenant}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", forged).Code)

	expired, _, err := SignAdminToken(testSecret, models.AdminProfile{TenantID: tenant}, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", expired).Code)
}

func TestRequireAuthRejectsForeignIssuer(t *testing.T) {
	claims := AdminClaims{
		TenantID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "election-core",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	r := newAuthRouter(NewAuthMiddleware(testSecret, nil))
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", token).Code)
}

func TestRequireAuthChecksSession(t *testing.T) {
	tenant := uuid.New()
	token, _, err := SignAdminToken(testSecret, models.AdminProfile{TenantID: tenant}, time.Hour)
	require.NoError(t, err)

	sessions := &fakeSessions{live: map[string]bool{}}
	r := newAuthRouter(NewAuthMiddleware(testSecret, sessions))

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", token).Code, "revoked session")

	sessions.live[token] = true
	assert.Equal(t, http.StatusOK, get(r, "/me", token).Code)

	sessions.err = errors.New("connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/me", token).Code)
}

func TestRequireTenantAccess(t *testing.T) {
	tenant := uuid.New()
	token, _, err := SignAdminToken(testSecret, models.AdminProfile{TenantID: tenant}, time.Hour)
	require.NoError(t, err)
	r := newAuthRouter(NewAuthMiddleware(testSecret, nil))

	assert.Equal(t, http.StatusOK, get(r, "/tenants/"+tenant.String(), token).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/tenants/"+uuid.NewString(), token).Code)
}
