package election

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/models"
)

const (
	DefaultTokenTTL        = 30 * time.Minute
	DefaultTokenRateWindow = 5 * time.Minute
	tokenBytes             = 32

	verificationSubject = "Verify Your Email for Voting - Action Required"
)

var tokenPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// Notifier delivers a message to a voter. A nil error means delivery was confirmed.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// TokenManager issues and consumes single-use email verification tokens
type TokenManager struct {
	db          *gorm.DB
	eligibility *EligibilityStore
	notifier    Notifier
	now         Clock
	ttl         time.Duration
	rateWindow  time.Duration
	linkBase    string
}

// TokenManagerConfig configures a TokenManager
type TokenManagerConfig struct {
	TTL        time.Duration
	RateWindow time.Duration
	// LinkBase is the absolute URL prefix the raw token is appended to
	LinkBase string
	Clock    Clock
}

// NewTokenManager creates a TokenManager
func NewTokenManager(db *gorm.DB, eligibility *EligibilityStore, notifier Notifier, cfg TokenManagerConfig) *TokenManager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultTokenRateWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	return &TokenManager{
		db:          db,
		eligibility: eligibility,
		notifier:    notifier,
		now:         cfg.Clock,
		ttl:         cfg.TTL,
		rateWindow:  cfg.RateWindow,
		linkBase:    strings.TrimRight(cfg.LinkBase, "/"),
	}
}

func newRawToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(raw)))
	return hex.EncodeToString(sum[:])
}

// RequestToken issues a fresh token for an eligible voter and mails it.
// It returns only once the notifier confirms delivery; on failure the
// previous token state is restored.
func (m *TokenManager) RequestToken(ctx context.Context, tenantID uuid.UUID, email, matric string) error {
	voter, err := m.eligibility.IsEligible(ctx, tenantID, email, matric)
	if err != nil {
		return err
	}

	db := m.db.WithContext(ctx)
	voted, err := hasVoted(db, voter)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}

	var prior *models.VerificationToken
	var existing models.VerificationToken
	err = db.Where("tenant_id = ? AND matric_id = ?", tenantID, voter.MatricID).First(&existing).Error
	switch {
	case err == nil:
		prior = &existing
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to load verification token: %w", err)
	}

	raw, err := newRawToken()
	if err != nil {
		return err
	}
	hash := hashToken(raw)
	now := m.now()

	// One statement both rate-limits and supersedes: the row is only replaced
	// when the current token is used, expired, or older than the rate window.
	res := db.Exec(`INSERT INTO verification_tokens (tenant_id, matric_id, email, token_hash, expires_at, is_used, used_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
ON CONFLICT (tenant_id, matric_id) DO UPDATE SET
	email = excluded.email,
	token_hash = excluded.token_hash,
	expires_at = excluded.expires_at,
	is_used = excluded.is_used,
	used_at = NULL,
	created_at = excluded.created_at
WHERE verification_tokens.is_used = ? OR verification_tokens.expires_at <= ? OR verification_tokens.created_at <= ?`,
		tenantID, voter.MatricID, voter.Email, hash, now.Add(m.ttl), false, now,
		true, now, now.Add(-m.rateWindow))
	if res.Error != nil {
		return fmt.Errorf("failed to store verification token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		retry := m.retryAfter(db, tenantID, voter.MatricID, now)
		logrus.WithFields(logrus.Fields{
			"tenant_id":   tenantID,
			"matric_id":   voter.MatricID,
			"retry_after": retry,
		}).Info("Verification request rate limited")
		return &RateLimitedError{RetryAfter: retry}
	}

	body, err := renderVerificationEmail(voter.MatricID, m.linkBase+"/"+raw, m.ttl)
	if err != nil {
		m.restore(db, tenantID, voter.MatricID, hash, prior)
		return err
	}

	if err := m.notifier.Send(ctx, voter.Email, verificationSubject, body); err != nil {
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"matric_id": voter.MatricID,
		}).WithError(err).Error("Failed to deliver verification email")
		m.restore(db, tenantID, voter.MatricID, hash, prior)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"matric_id":  voter.MatricID,
		"token_hash": hash[:8],
		"expires_at": now.Add(m.ttl),
	}).Info("Verification token issued")
	return nil
}

// retryAfter is the time left until the live token leaves the rate window
func (m *TokenManager) retryAfter(db *gorm.DB, tenantID uuid.UUID, matric string, now time.Time) time.Duration {
	var current models.VerificationToken
	if err := db.Where("tenant_id = ? AND matric_id = ?", tenantID, matric).First(&current).Error; err != nil {
		return m.rateWindow
	}
	retry := current.CreatedAt.Add(m.rateWindow).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return retry
}

// restore undoes our upsert, but only while the row still holds our token
func (m *TokenManager) restore(db *gorm.DB, tenantID uuid.UUID, matric, hash string, prior *models.VerificationToken) {
	q := db.Where("tenant_id = ? AND matric_id = ? AND token_hash = ?", tenantID, matric, hash)

	var err error
	if prior == nil {
		err = q.Delete(&models.VerificationToken{}).Error
	} else {
		err = q.Model(&models.VerificationToken{}).Updates(map[string]interface{}{
			"email":      prior.Email,
			"token_hash": prior.TokenHash,
			"expires_at": prior.ExpiresAt,
			"is_used":    prior.IsUsed,
			"used_at":    prior.UsedAt,
			"created_at": prior.CreatedAt,
		}).Error
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"matric_id": matric,
		}).WithError(err).Error("Failed to roll back verification token")
	}
}

// Consume validates and spends a token in one transaction.
// Concurrent calls with the same token yield exactly one success.
func (m *TokenManager) Consume(ctx context.Context, raw string) (*VerifiedVoter, error) {
	if !tokenPattern.MatchString(raw) {
		return nil, ErrInvalidToken
	}
	hash := hashToken(raw)
	now := m.now()

	var verified *VerifiedVoter
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.VerificationToken{}).
			Where("token_hash = ? AND is_used = ? AND expires_at > ?", hash, false, now).
			Updates(map[string]interface{}{"is_used": true, "used_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to consume verification token: %w", res.Error)
		}

		var token models.VerificationToken
		err := tx.Where("token_hash = ?", hash).First(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return fmt.Errorf("failed to load verification token: %w", err)
		}

		if res.RowsAffected == 0 {
			if token.IsUsed {
				return ErrAlreadyUsed
			}
			return ErrExpiredToken
		}

		voter, err := lookupVoter(tx, token.TenantID, token.MatricID)
		if errors.Is(err, ErrUnknownVoter) {
			return ErrNotEligible
		}
		if err != nil {
			return err
		}
		voted, err := hasVoted(tx, voter)
		if err != nil {
			return err
		}
		if voted {
			return ErrAlreadyVoted
		}

		verified = &VerifiedVoter{
			TenantID:      voter.TenantID,
			MatricID:      voter.MatricID,
			Email:         voter.Email,
			PartitionCode: voter.PartitionCode,
			Method:        MethodEmailToken,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":  verified.TenantID,
		"matric_id":  verified.MatricID,
		"token_hash": hash[:8],
	}).Info("Verification token consumed")
	return verified, nil
}

// hasVoted is true once the flag is set or any ballot exists for the voter
func hasVoted(db *gorm.DB, voter *models.VoterRecord) (bool, error) {
	if voter.HasVoted {
		return true, nil
	}
	var count int64
	if err := db.Model(&models.Ballot{}).
		Where("tenant_id = ? AND matric_id = ?", voter.TenantID, voter.MatricID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check ballots: %w", err)
	}
	return count > 0, nil
}

var verificationEmail = template.Must(template.New("verification").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="font-size: 24px;">Email Verification</h1>
  <p>Hello <strong>{{.Matric}}</strong>,</p>
  <p>You have requested to verify your email address to participate in the voting process.
  Click the button below to verify your email and proceed to cast your vote.</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="{{.Link}}" style="background: #667eea; color: white; padding: 15px 30px; text-decoration: none; border-radius: 25px; font-weight: bold;">Verify Email &amp; Vote</a>
  </p>
  <p><strong>Important:</strong> This verification link will expire in {{.Minutes}} minutes.</p>
  <p style="font-size: 14px; color: #777;">If the button doesn't work, copy and paste this link into your browser:</p>
  <p style="word-break: break-all; font-size: 12px;">{{.Link}}</p>
  <hr>
  <p style="font-size: 12px; color: #999;">If you didn't request this verification, please ignore this email.</p>
</div>`))

func renderVerificationEmail(matric, link string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := verificationEmail.Execute(&buf, struct {
		Matric  string
		Link    string
		Minutes int
	}{matric, link, int(ttl / time.Minute)})
	if err != nil {
		return "", fmt.Errorf("failed to render verification email: %w", err)
	}
	return buf.String(), nil
}
