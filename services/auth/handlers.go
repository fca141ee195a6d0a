package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/election"
	"github.com/pavitra93/go-election-system/shared/middleware"
	"github.com/pavitra93/go-election-system/shared/models"
	"github.com/pavitra93/go-election-system/shared/utils"
)

// sessionStore is the part of utils.RedisStore the auth service uses
type sessionStore interface {
	CreateAdminSession(ctx context.Context, token string, profile models.AdminProfile, ttl time.Duration) (*models.AdminSession, error)
	RevokeAdminSession(ctx context.Context, token string) error
	RevokeTenantSessions(ctx context.Context, tenantID uuid.UUID) error
}

type handlers struct {
	db       *gorm.DB
	secret   string
	tokenTTL time.Duration
	sessions sessionStore
	cost     int
}

// SignupRequest registers an election administrator
type SignupRequest struct {
	Name        string `json:"name" binding:"required"`
	Institution string `json:"institution"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	ExpiresIn   int64               `json:"expires_in"`
	SessionID   string              `json:"session_id,omitempty"`
	Profile     models.AdminProfile `json:"profile"`
}

func (h *handlers) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format: "+err.Error())
		return
	}

	email := election.NormalizeEmail(req.Email)
	if !election.ValidEmail(email) {
		utils.BadRequestResponse(c, "Invalid email address")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		utils.BadRequestResponse(c, "Name is required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		logrus.WithError(err).Error("Failed to hash password")
		utils.InternalServerErrorResponse(c, "Failed to create account")
		return
	}

	tenant := models.Tenant{
		Name:         name,
		Institution:  strings.TrimSpace(req.Institution),
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			utils.CodedErrorResponse(c, http.StatusBadRequest, "DuplicateEmail", "An account with this email already exists", nil)
			return
		}
		logrus.WithError(err).Error("Failed to create tenant")
		utils.InternalServerErrorResponse(c, "Failed to create account")
		return
	}

	logrus.WithField("tenant_id", tenant.ID).Info("Election administrator registered")
	utils.CreatedResponse(c, "Account created", tenant.Profile())
}

func (h *handlers) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format")
		return
	}

	var tenant models.Tenant
	err := h.db.WithContext(c.Request.Context()).
		Where("email = ?", election.NormalizeEmail(req.Email)).
		First(&tenant).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Error("Failed to load tenant")
		utils.InternalServerErrorResponse(c, "Login failed")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(tenant.PasswordHash), []byte(req.Password)) != nil {
		utils.UnauthorizedResponse(c, "Invalid credentials")
		return
	}
	if !tenant.IsActive {
		utils.ForbiddenResponse(c, "Account is disabled")
		return
	}

	profile := tenant.Profile()
	token, expiresAt, err := middleware.SignAdminToken(h.secret, profile, h.tokenTTL)
	if err != nil {
		logrus.WithError(err).Error("Failed to sign admin token")
		utils.InternalServerErrorResponse(c, "Login failed")
		return
	}

	resp := LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		Profile:     profile,
	}
	if h.sessions != nil {
		session, err := h.sessions.CreateAdminSession(c.Request.Context(), token, profile, h.tokenTTL)
		if err != nil {
			logrus.WithError(err).Error("Failed to create admin session")
			utils.InternalServerErrorResponse(c, "Failed to create session")
			return
		}
		resp.SessionID = session.SessionID
	}

	logrus.WithField("tenant_id", tenant.ID).Info("Administrator logged in")
	utils.OKResponse(c, "Login successful", resp)
}

func (h *handlers) logout(c *gin.Context) {
	if h.sessions != nil {
		if err := h.sessions.RevokeAdminSession(c.Request.Context(), c.GetString(middleware.ContextToken)); err != nil {
			logrus.WithError(err).Error("Failed to revoke admin session")
			utils.InternalServerErrorResponse(c, "Logout failed")
			return
		}
	}
	utils.OKResponse(c, "Logged out", nil)
}

func (h *handlers) me(c *gin.Context) {
	tenantID, err := middleware.GetTenantIDFromContext(c)
	if err != nil {
		utils.UnauthorizedResponse(c, err.Error())
		return
	}

	var tenant models.Tenant
	if err := h.db.WithContext(c.Request.Context()).First(&tenant, "id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Account not found")
			return
		}
		utils.InternalServerErrorResponse(c, "Failed to load account")
		return
	}
	utils.OKResponse(c, "Account retrieved", tenant.Profile())
}

// deleteAccount removes the tenant and every election record it owns
func (h *handlers) deleteAccount(c *gin.Context) {
	tenantID, err := middleware.GetTenantIDFromContext(c)
	if err != nil {
		utils.UnauthorizedResponse(c, err.Error())
		return
	}

	var deleted int64
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// Children first; foreign keys restrict deleting referenced rows
		owned := []interface{}{
			&models.Ballot{},
			&models.VerificationToken{},
			&models.VoterRecord{},
			&models.Candidate{},
			&models.Partition{},
			&models.VotingLink{},
		}
		for _, m := range owned {
			if err := tx.Where("tenant_id = ?", tenantID).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", tenantID).Delete(&models.Tenant{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		logrus.WithError(err).WithField("tenant_id", tenantID).Error("Failed to delete account")
		utils.InternalServerErrorResponse(c, "Failed to delete account")
		return
	}
	if deleted == 0 {
		utils.NotFoundResponse(c, "Account not found")
		return
	}

	if h.sessions != nil {
		if err := h.sessions.RevokeTenantSessions(c.Request.Context(), tenantID); err != nil {
			logrus.WithError(err).Warn("Failed to revoke sessions of deleted account")
		}
	}
	logrus.WithField("tenant_id", tenantID).Info("Election administrator account deleted")
	utils.OKResponse(c, "Account deleted", nil)
}
