package election

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/models"
)

const EventBallotCommitted = "ballot_committed"

// BallotEventPublisher receives committed ballots for audit fan-out
type BallotEventPublisher interface {
	PublishBallot(ctx context.Context, event models.BallotEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishBallot(context.Context, models.BallotEvent) error { return nil }

// BallotLedger records at most one ballot per voter per position and keeps
// candidate counters in step with the ballots
type BallotLedger struct {
	db           *gorm.DB
	capabilities *CapabilityIssuer
	publisher    BallotEventPublisher
	now          Clock
}

// NewBallotLedger creates a BallotLedger. A nil publisher discards events.
func NewBallotLedger(db *gorm.DB, capabilities *CapabilityIssuer, publisher BallotEventPublisher, clock Clock) *BallotLedger {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if clock == nil {
		clock = SystemClock
	}
	return &BallotLedger{db: db, capabilities: capabilities, publisher: publisher, now: clock}
}

// CastVote commits one ballot. The unique index on (tenant, matric, position)
// decides races; losers get a *DuplicateVoteError naming the winning choice.
func (l *BallotLedger) CastVote(ctx context.Context, tenantID uuid.UUID, matric string, candidateID uuid.UUID, capability string) (*models.BallotReceipt, error) {
	matric = NormalizeMatric(matric)
	claims, err := l.capabilities.Verify(capability, tenantID, matric)
	if err != nil {
		return nil, err
	}

	db := l.db.WithContext(ctx)

	var candidate models.Candidate
	err = db.Where("id = ? AND tenant_id = ?", candidateID, tenantID).First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownCandidate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}

	voter, err := lookupVoter(db, tenantID, matric)
	if errors.Is(err, ErrUnknownVoter) {
		return nil, ErrNotEligible
	}
	if err != nil {
		return nil, err
	}
	// Code-verified sessions are re-checked against the standing binding
	if claims.Method == MethodVotingCode && claims.PartitionCode != voter.PartitionCode {
		return nil, ErrNotEligible
	}

	ballot := models.Ballot{
		ID:                uuid.New(),
		TenantID:          tenantID,
		MatricID:          matric,
		Position:          candidate.Position,
		CandidateID:       candidate.ID,
		PartitionCodeUsed: voter.PartitionCode,
		CommittedAt:       l.now(),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ballot).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateVote
			}
			if isForeignKeyViolation(err) {
				return ErrUnknownCandidate
			}
			return fmt.Errorf("failed to record ballot: %w", err)
		}

		res := tx.Model(&models.Candidate{}).
			Where("id = ? AND tenant_id = ?", candidate.ID, tenantID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("failed to increment vote count: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrUnknownCandidate
		}

		if err := tx.Model(&models.VoterRecord{}).
			Where("tenant_id = ? AND matric_id = ? AND has_voted = ?", tenantID, matric, false).
			UpdateColumns(map[string]interface{}{"has_voted": true, "voted_at": ballot.CommittedAt}).Error; err != nil {
			return fmt.Errorf("failed to mark voter as voted: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateVote) {
		return nil, l.duplicateVote(db, tenantID, matric, candidate.Position)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"matric_id": matric,
		"position":  candidate.Position,
		"ballot_id": ballot.ID,
	}).Info("Ballot committed")

	event := models.BallotEvent{
		EventType:     EventBallotCommitted,
		BallotID:      ballot.ID,
		TenantID:      tenantID,
		Position:      ballot.Position,
		CandidateID:   candidate.ID,
		PartitionCode: ballot.PartitionCodeUsed,
		CommittedAt:   ballot.CommittedAt,
	}
	if err := l.publisher.PublishBallot(ctx, event); err != nil {
		logrus.WithField("ballot_id", ballot.ID).WithError(err).Warn("Failed to publish ballot event")
	}

	var available int64
	if err := db.Model(&models.Candidate{}).
		Where("tenant_id = ? AND position = ?", tenantID, candidate.Position).
		Count(&available).Error; err != nil {
		logrus.WithError(err).Warn("Failed to count candidates for receipt")
	}

	return &models.BallotReceipt{
		BallotID:            ballot.ID,
		CandidateName:       candidate.Name,
		Position:            candidate.Position,
		IsVoid:              candidate.IsVoid,
		AvailableCandidates: int(available),
		CommittedAt:         ballot.CommittedAt,
	}, nil
}

// duplicateVote reads back the winning ballot so the loser learns what was chosen
func (l *BallotLedger) duplicateVote(db *gorm.DB, tenantID uuid.UUID, matric, position string) error {
	dup := &DuplicateVoteError{Position: position}

	var row struct{ Name string }
	err := db.Table("ballots AS b").
		Select("c.name").
		Joins("JOIN candidates c ON c.id = b.candidate_id").
		Where("b.tenant_id = ? AND b.matric_id = ? AND b.position = ?", tenantID, matric, position).
		Scan(&row).Error
	if err != nil {
		logrus.WithError(err).Warn("Failed to read back existing ballot")
	} else {
		dup.PreviousCandidate = row.Name
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"matric_id": matric,
		"position":  position,
	}).Info("Duplicate vote rejected")
	return dup
}

// Ballots lists the ballots a voter has committed
func (l *BallotLedger) Ballots(ctx context.Context, tenantID uuid.UUID, matric string) ([]models.Ballot, error) {
	var ballots []models.Ballot
	if err := l.db.WithContext(ctx).
		Where("tenant_id = ? AND matric_id = ?", tenantID, NormalizeMatric(matric)).
		Order("committed_at").
		Find(&ballots).Error; err != nil {
		return nil, fmt.Errorf("failed to list ballots: %w", err)
	}
	return ballots, nil
}
