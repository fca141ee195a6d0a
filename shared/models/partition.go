package models

import (
	"time"

	"github.com/google/uuid"
)

// Partition is a named voting code that segments a tenant's electorate.
// Code and Name are each unique per tenant.
type Partition struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	TenantID    uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_partition_tenant_code,priority:1;uniqueIndex:idx_partition_tenant_name,priority:1"`
	Code        string    `json:"code" gorm:"size:16;not null;uniqueIndex:idx_partition_tenant_code,priority:2"`
	Name        string    `json:"name" gorm:"size:100;not null;uniqueIndex:idx_partition_tenant_name,priority:2"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for the Partition model
func (Partition) TableName() string {
	return "partitions"
}

// PartitionSummary is a partition with its live voter counts
type PartitionSummary struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	VoterCount  int64     `json:"voter_count"`
	VotedCount  int64     `json:"voted_count"`
	Pending     int64     `json:"pending"`
}
