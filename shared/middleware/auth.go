package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/models"
	"github.com/pavitra93/go-election-system/shared/utils"
)

const adminIssuer = "election-admin"

// Context keys set by RequireAuth
const (
	ContextTenantID = "tenant_id"
	ContextEmail    = "email"
	ContextToken    = "access_token"
)

// SessionStore looks up server-side admin sessions so logout can revoke a
// token before it expires
type SessionStore interface {
	GetAdminSession(ctx context.Context, token string) (*models.AdminSession, error)
}

// AdminClaims are carried by admin access tokens
type AdminClaims struct {
	TenantID string `json:"tid"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates admin access tokens
type AuthMiddleware struct {
	secret   []byte
	sessions SessionStore
}

// NewAuthMiddleware creates the middleware. sessions may be nil, in which
// case tokens are trusted until they expire.
func NewAuthMiddleware(secret string, sessions SessionStore) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret), sessions: sessions}
}

// SignAdminToken issues an access token for an election administrator
func SignAdminToken(secret string, profile models.AdminProfile, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := AdminClaims{
		TenantID: profile.TenantID.String(),
		Email:    profile.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminIssuer,
			Subject:   profile.TenantID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// RequireAuth middleware validates JWT tokens
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			utils.UnauthorizedResponse(c, "Authorization token required")
			c.Abort()
			return
		}

		claims, err := am.parseToken(tokenString)
		if err != nil {
			logrus.WithError(err).Debug("Rejected admin token")
			utils.UnauthorizedResponse(c, "Invalid token")
			c.Abort()
			return
		}

		if am.sessions != nil {
			_, err := am.sessions.GetAdminSession(c.Request.Context(), tokenString)
			switch {
			case errors.Is(err, utils.ErrSessionNotFound), errors.Is(err, utils.ErrSessionExpired):
				utils.UnauthorizedResponse(c, "Session has ended, please log in again")
				c.Abort()
				return
			case err != nil:
				logrus.WithError(err).Error("Failed to check admin session")
				utils.ServiceUnavailableResponse(c, "Session store unavailable")
				c.Abort()
				return
			}
		}

		c.Set(ContextTenantID, claims.TenantID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextToken, tokenString)
		c.Next()
	}
}

func (am *AuthMiddleware) parseToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return am.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(adminIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.TenantID); err != nil {
		return nil, fmt.Errorf("invalid tenant claim: %w", err)
	}
	return claims, nil
}

// RequireTenantAccess rejects requests whose :tenant_id path parameter names
// a tenant other than the authenticated one
func (am *AuthMiddleware) RequireTenantAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		requested := c.Param("tenant_id")
		if requested != "" && !strings.EqualFold(requested, c.GetString(ContextTenantID)) {
			utils.ForbiddenResponse(c, "Access denied to this tenant")
			c.Abort()
			return
		}
		c.Next()
	}
}

// extractToken extracts the JWT token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return authHeader
}

// GetTenantIDFromContext returns the tenant of the authenticated admin
func GetTenantIDFromContext(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetString(ContextTenantID)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("tenant_id not found in context")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant_id in context: %w", err)
	}
	return id, nil
}
