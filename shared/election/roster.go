package election

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pavitra93/go-election-system/shared/models"
)

// CandidateRoster manages candidates and keeps a VOID choice in every position
type CandidateRoster struct {
	db *gorm.DB
}

// NewCandidateRoster creates a CandidateRoster backed by db
func NewCandidateRoster(db *gorm.DB) *CandidateRoster {
	return &CandidateRoster{db: db}
}

// PositionSummary describes one contested position
type PositionSummary struct {
	Position   string `json:"position"`
	Candidates int    `json:"candidates"`
	HasVoid    bool   `json:"has_void"`
	TotalVotes int64  `json:"total_votes"`
}

func isVoidName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), models.VoidCandidateName)
}

// AddCandidate adds a real candidate and makes sure the position has VOID
func (r *CandidateRoster) AddCandidate(ctx context.Context, tenantID uuid.UUID, name, position, description string) (*models.Candidate, error) {
	name = strings.TrimSpace(name)
	position = strings.TrimSpace(position)
	if name == "" || position == "" {
		return nil, validationError("name and position are required")
	}
	if isVoidName(name) {
		return nil, validationError("%s is reserved and created automatically", models.VoidCandidateName)
	}

	candidate := models.Candidate{
		TenantID:    tenantID,
		Name:        name,
		Position:    position,
		Description: strings.TrimSpace(description),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&candidate).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateCandidate
			}
			return fmt.Errorf("failed to create candidate: %w", err)
		}
		return ensureVoid(tx, tenantID, position)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"position":  position,
		"candidate": name,
	}).Info("Candidate added")
	return &candidate, nil
}

// ensureVoid inserts the VOID candidate unless it already exists
func ensureVoid(tx *gorm.DB, tenantID uuid.UUID, position string) error {
	void := models.Candidate{
		TenantID:    tenantID,
		Name:        models.VoidCandidateName,
		Position:    position,
		Description: "Abstain from this position",
		IsVoid:      true,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&void).Error; err != nil {
		return fmt.Errorf("failed to create VOID candidate: %w", err)
	}
	return nil
}

// EnsureVoidCandidates backfills VOID for every position with a real candidate
// and returns the positions that were checked
func (r *CandidateRoster) EnsureVoidCandidates(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	var positions []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Candidate{}).
			Where("tenant_id = ? AND is_void = ?", tenantID, false).
			Distinct().Order("position").
			Pluck("position", &positions).Error; err != nil {
			return fmt.Errorf("failed to list positions: %w", err)
		}
		for _, p := range positions {
			if err := ensureVoid(tx, tenantID, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// List returns every candidate ordered by position with VOID last
func (r *CandidateRoster) List(ctx context.Context, tenantID uuid.UUID) ([]models.Candidate, error) {
	return r.list(ctx, tenantID, "")
}

// ListByPosition returns the candidates of one position with VOID last
func (r *CandidateRoster) ListByPosition(ctx context.Context, tenantID uuid.UUID, position string) ([]models.Candidate, error) {
	return r.list(ctx, tenantID, strings.TrimSpace(position))
}

func (r *CandidateRoster) list(ctx context.Context, tenantID uuid.UUID, position string) ([]models.Candidate, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if position != "" {
		q = q.Where("position = ?", position)
	}
	candidates := []models.Candidate{}
	if err := q.Order("position, is_void, name").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return candidates, nil
}

// Positions summarises each position of the tenant
func (r *CandidateRoster) Positions(ctx context.Context, tenantID uuid.UUID) ([]PositionSummary, error) {
	candidates, err := r.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summaries := []PositionSummary{}
	index := map[string]int{}
	for _, c := range candidates {
		i, ok := index[c.Position]
		if !ok {
			i = len(summaries)
			index[c.Position] = i
			summaries = append(summaries, PositionSummary{Position: c.Position})
		}
		summaries[i].Candidates++
		summaries[i].TotalVotes += c.VoteCount
		if c.IsVoid {
			summaries[i].HasVoid = true
		}
	}
	return summaries, nil
}

// Delete removes a candidate nobody has voted for. VOID stays while the
// position still has real candidates.
func (r *CandidateRoster) Delete(ctx context.Context, tenantID, candidateID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidate models.Candidate
		err := tx.Where("id = ? AND tenant_id = ?", candidateID, tenantID).First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownCandidate
		}
		if err != nil {
			return fmt.Errorf("failed to load candidate: %w", err)
		}

		if candidate.IsVoid {
			var others int64
			if err := tx.Model(&models.Candidate{}).
				Where("tenant_id = ? AND position = ? AND is_void = ?", tenantID, candidate.Position, false).
				Count(&others).Error; err != nil {
				return fmt.Errorf("failed to count candidates: %w", err)
			}
			if others > 0 {
				return validationError("%s is required while %s has candidates", models.VoidCandidateName, candidate.Position)
			}
		}

		res := tx.Where("id = ? AND tenant_id = ?", candidateID, tenantID).
			Where("NOT EXISTS (SELECT 1 FROM ballots b WHERE b.candidate_id = ?)", candidateID).
			Delete(&models.Candidate{})
		if isForeignKeyViolation(res.Error) {
			return ErrCandidateHasVotes
		}
		if res.Error != nil {
			return fmt.Errorf("failed to delete candidate: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCandidateHasVotes
		}
		return nil
	})
}
