package election

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/models"
)

// ResultsAggregator derives tallies from the ledger on every call
type ResultsAggregator struct {
	db *gorm.DB
}

// NewResultsAggregator creates a ResultsAggregator backed by db
func NewResultsAggregator(db *gorm.DB) *ResultsAggregator {
	return &ResultsAggregator{db: db}
}

// Results tallies every position of the tenant
func (a *ResultsAggregator) Results(ctx context.Context, tenantID uuid.UUID) (*models.ElectionResults, error) {
	var candidates []models.Candidate
	if err := a.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	return Tally(candidates), nil
}

// PositionResults tallies a single position. A position without candidates
// yields an empty tally.
func (a *ResultsAggregator) PositionResults(ctx context.Context, tenantID uuid.UUID, position string) (*models.PositionResult, error) {
	var candidates []models.Candidate
	if err := a.db.WithContext(ctx).
		Where("tenant_id = ? AND position = ?", tenantID, position).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	results := Tally(candidates)
	if len(results.Positions) == 0 {
		return &models.PositionResult{Position: position, Candidates: []models.CandidateResult{}}, nil
	}
	return &results.Positions[0], nil
}

// Tally groups candidates by position and computes two-decimal percentages.
// Positions are sorted by name, candidates by votes then name.
func Tally(candidates []models.Candidate) *models.ElectionResults {
	byPosition := map[string][]models.Candidate{}
	for _, c := range candidates {
		byPosition[c.Position] = append(byPosition[c.Position], c)
	}

	positions := make([]string, 0, len(byPosition))
	for p := range byPosition {
		positions = append(positions, p)
	}
	sort.Strings(positions)

	results := &models.ElectionResults{Positions: make([]models.PositionResult, 0, len(positions))}
	for _, position := range positions {
		group := byPosition[position]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].VoteCount != group[j].VoteCount {
				return group[i].VoteCount > group[j].VoteCount
			}
			return group[i].Name < group[j].Name
		})

		var total int64
		for _, c := range group {
			total += c.VoteCount
		}

		pr := models.PositionResult{
			Position:   position,
			TotalVotes: total,
			Candidates: make([]models.CandidateResult, 0, len(group)),
		}
		for _, c := range group {
			pr.Candidates = append(pr.Candidates, models.CandidateResult{
				CandidateID: c.ID.String(),
				Name:        c.Name,
				Votes:       c.VoteCount,
				Percentage:  Percentage(c.VoteCount, total),
				IsVoid:      c.IsVoid,
			})
		}
		results.Positions = append(results.Positions, pr)
		results.GrandTotalVotes += total
	}
	return results
}

// Percentage formats votes/total as a percentage with two decimals; "0.00" when total is zero.
// Ties round up, so 1 of 32 is 3.13.
func Percentage(votes, total int64) string {
	if total <= 0 || votes <= 0 {
		return "0.00"
	}
	// hundredths of a percent, rounded half up in integer arithmetic
	h := (votes*20000 + total) / (2 * total)
	return fmt.Sprintf("%d.%02d", h/100, h%100)
}

// Audit compares every candidate counter with the number of ballots naming it
func (a *ResultsAggregator) Audit(ctx context.Context, tenantID uuid.UUID) (*models.TallyAudit, error) {
	db := a.db.WithContext(ctx)

	var candidates []models.Candidate
	if err := db.Where("tenant_id = ?", tenantID).Order("position, name").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	var rows []struct {
		CandidateID string
		Ballots     int64
	}
	if err := db.Model(&models.Ballot{}).
		Select("candidate_id, COUNT(*) AS ballots").
		Where("tenant_id = ?", tenantID).
		Group("candidate_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count ballots: %w", err)
	}
	ballots := make(map[string]int64, len(rows))
	audit := &models.TallyAudit{Consistent: true, Candidates: len(candidates), Discrepancies: []models.TallyDiscrepancy{}}
	for _, r := range rows {
		ballots[r.CandidateID] = r.Ballots
		audit.Ballots += r.Ballots
	}

	for _, c := range candidates {
		id := c.ID.String()
		if n := ballots[id]; n != c.VoteCount {
			audit.Discrepancies = append(audit.Discrepancies, models.TallyDiscrepancy{
				CandidateID: id,
				Name:        c.Name,
				Position:    c.Position,
				Counter:     c.VoteCount,
				Ballots:     n,
			})
		}
		delete(ballots, id)
	}
	// Ballots pointing at candidates that no longer exist
	for id, n := range ballots {
		audit.Discrepancies = append(audit.Discrepancies, models.TallyDiscrepancy{CandidateID: id, Ballots: n})
	}
	audit.Consistent = len(audit.Discrepancies) == 0
	return audit, nil
}
