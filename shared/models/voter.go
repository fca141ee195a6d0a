package models

import (
	"time"

	"github.com/google/uuid"
)

// VoterRecord is one whitelisted voter. MatricID is unique within a tenant.
type VoterRecord struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	TenantID      uuid.UUID  `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_voter_tenant_matric,priority:1"`
	MatricID      string     `json:"matric_id" gorm:"size:64;not null;uniqueIndex:idx_voter_tenant_matric,priority:2"`
	Email         string     `json:"email" gorm:"size:255;not null;index"`
	PartitionCode string     `json:"partition_code" gorm:"size:16;not null;index"`
	HasVoted      bool       `json:"has_voted" gorm:"not null;default:false"`
	BoundAt       time.Time  `json:"bound_at"`
	VotedAt       *time.Time `json:"voted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Partition carries the (tenant_id, partition_code) foreign key; a voting
	// code cannot be deleted while a voter still references it.
	Partition *Partition `json:"-" gorm:"foreignKey:TenantID,PartitionCode;references:TenantID,Code;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

// TableName returns the table name for the VoterRecord model
func (VoterRecord) TableName() string {
	return "voter_records"
}

// VoterView is a voter joined with the name of the partition it is bound to
type VoterView struct {
	MatricID      string     `json:"matric_id"`
	Email         string     `json:"email"`
	PartitionCode string     `json:"partition_code"`
	PartitionName string     `json:"partition_name"`
	HasVoted      bool       `json:"has_voted"`
	BoundAt       time.Time  `json:"bound_at"`
	VotedAt       *time.Time `json:"voted_at,omitempty"`
}

// EnrollmentStats summarises the whitelist of a tenant
type EnrollmentStats struct {
	Total   int64 `json:"total"`
	Voted   int64 `json:"voted"`
	Pending int64 `json:"pending"`
}
