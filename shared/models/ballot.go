package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoidCandidateName is the sentinel abstention candidate present in every contested position
const VoidCandidateName = "VOID"

// Candidate is a choice for one position. VoteCount only ever grows, and only on ballot commit.
type Candidate struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_candidate_tenant_position_name,priority:1"`
	Position    string    `json:"position" gorm:"size:100;not null;uniqueIndex:idx_candidate_tenant_position_name,priority:2"`
	Name        string    `json:"name" gorm:"size:150;not null;uniqueIndex:idx_candidate_tenant_position_name,priority:3"`
	Description string    `json:"description,omitempty"`
	IsVoid      bool      `json:"is_void" gorm:"not null;default:false"`
	VoteCount   int64     `json:"vote_count" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for the Candidate model
func (Candidate) TableName() string {
	return "candidates"
}

// BeforeCreate assigns a UUID when the caller did not
func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Ballot is an immutable committed vote. (TenantID, MatricID, Position) is unique.
type Ballot struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID          uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_ballot_tenant_matric_position,priority:1"`
	MatricID          string    `json:"matric_id" gorm:"size:64;not null;uniqueIndex:idx_ballot_tenant_matric_position,priority:2"`
	Position          string    `json:"position" gorm:"size:100;not null;uniqueIndex:idx_ballot_tenant_matric_position,priority:3"`
	CandidateID       uuid.UUID `json:"candidate_id" gorm:"type:uuid;not null;index"`
	PartitionCodeUsed string    `json:"partition_code_used" gorm:"size:16"`
	CommittedAt       time.Time `json:"committed_at" gorm:"not null"`

	Candidate *Candidate `json:"-" gorm:"foreignKey:CandidateID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

// TableName returns the table name for the Ballot model
func (Ballot) TableName() string {
	return "ballots"
}

// BeforeCreate assigns a UUID when the caller did not
func (b *Ballot) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BallotReceipt is returned to the voter after a successful commit
type BallotReceipt struct {
	BallotID            uuid.UUID `json:"ballot_id"`
	CandidateName       string    `json:"candidate_name"`
	Position            string    `json:"position"`
	IsVoid              bool      `json:"is_void"`
	AvailableCandidates int       `json:"available_candidates"`
	CommittedAt         time.Time `json:"committed_at"`
}

// BallotEvent is published after a ballot commits. It never carries voter contact details.
type BallotEvent struct {
	EventType     string    `json:"event_type"`
	BallotID      uuid.UUID `json:"ballot_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Position      string    `json:"position"`
	CandidateID   uuid.UUID `json:"candidate_id"`
	PartitionCode string    `json:"partition_code"`
	CommittedAt   time.Time `json:"committed_at"`
}
