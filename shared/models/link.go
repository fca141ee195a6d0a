package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VotingLink is a shareable URL an administrator hands out to voters
type VotingLink struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`
	URL       string    `json:"url" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the VotingLink model
func (VotingLink) TableName() string {
	return "voting_links"
}

// BeforeCreate assigns a UUID when the caller did not
func (l *VotingLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// All lists every persisted model in migration order
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&Partition{},
		&VoterRecord{},
		&VerificationToken{},
		&Candidate{},
		&Ballot{},
		&VotingLink{},
	}
}
