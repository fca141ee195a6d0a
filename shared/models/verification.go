package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationToken is the single live email verification record of a voter.
// Only the SHA-256 of the raw token is persisted.
type VerificationToken struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	TenantID  uuid.UUID  `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_token_tenant_matric,priority:1"`
	MatricID  string     `json:"matric_id" gorm:"size:64;not null;uniqueIndex:idx_token_tenant_matric,priority:2"`
	Email     string     `json:"email" gorm:"size:255;not null"`
	TokenHash string     `json:"-" gorm:"size:64;not null;uniqueIndex"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	IsUsed    bool       `json:"is_used" gorm:"not null;default:false"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`
}

// TableName returns the table name for the VerificationToken model
func (VerificationToken) TableName() string {
	return "verification_tokens"
}

// IsExpired reports whether the token has passed its expiry at the given instant
func (v *VerificationToken) IsExpired(now time.Time) bool {
	return !v.ExpiresAt.After(now)
}
