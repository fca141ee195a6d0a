package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant is an election owner. Every voter, partition, candidate and ballot is scoped to one.
type Tenant struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string    `json:"name" gorm:"size:150;not null"`
	Institution  string    `json:"institution,omitempty" gorm:"size:200"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// BeforeCreate assigns a UUID when the caller did not
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// AdminProfile is the public view of a tenant returned by the auth service
type AdminProfile struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Institution string    `json:"institution,omitempty"`
	Email       string    `json:"email"`
}

// Profile converts the tenant into its public view
func (t *Tenant) Profile() AdminProfile {
	return AdminProfile{
		TenantID:    t.ID,
		Name:        t.Name,
		Institution: t.Institution,
		Email:       t.Email,
	}
}

// AdminSession is stored in Redis for each issued admin token
type AdminSession struct {
	SessionID string       `json:"session_id"`
	Profile   AdminProfile `json:"profile"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}
