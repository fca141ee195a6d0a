package election

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/models"
)

// LinkRegistry stores shareable voting links
type LinkRegistry struct {
	db      *gorm.DB
	baseURL string
}

// NewLinkRegistry creates a LinkRegistry whose links start with baseURL
func NewLinkRegistry(db *gorm.DB, baseURL string) *LinkRegistry {
	return &LinkRegistry{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

// Generate creates a new link that carries the tenant so the client can scope requests
func (r *LinkRegistry) Generate(ctx context.Context, tenantID uuid.UUID) (*models.VotingLink, error) {
	link := models.VotingLink{ID: uuid.New(), TenantID: tenantID}
	link.URL = fmt.Sprintf("%s/%s?link=%s", r.baseURL, tenantID, link.ID)
	if err := r.db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to create voting link: %w", err)
	}
	return &link, nil
}

// List returns the tenant's links, newest first
func (r *LinkRegistry) List(ctx context.Context, tenantID uuid.UUID) ([]models.VotingLink, error) {
	links := []models.VotingLink{}
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list voting links: %w", err)
	}
	return links, nil
}
