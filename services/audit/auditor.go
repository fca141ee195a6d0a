package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/election"
	"github.com/pavitra93/go-election-system/shared/models"
)

// Finding kinds
const (
	FindingMalformedEvent   = "malformed_event"
	FindingMissingBallot    = "missing_ballot"
	FindingBallotMismatch   = "ballot_mismatch"
	FindingTallyDiscrepancy = "tally_discrepancy"
)

// AuditFinding records something the ledger and the event stream disagree on
type AuditFinding struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	BallotID  *uuid.UUID `json:"ballot_id,omitempty" gorm:"type:uuid"`
	Kind      string     `json:"kind" gorm:"size:32;not null;index"`
	Detail    string     `json:"detail"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the table name for the AuditFinding model
func (AuditFinding) TableName() string {
	return "audit_findings"
}

// eventSource is satisfied by *kafka.Reader
type eventSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditStats counts what the auditor has processed since start
type AuditStats struct {
	EventsProcessed int64  `json:"events_processed"`
	EventsVerified  int64  `json:"events_verified"`
	Findings        int64  `json:"findings"`
	Sweeps          int64  `json:"sweeps"`
	PendingTenants  int    `json:"pending_tenants"`
	SweepInterval   string `json:"sweep_interval"`
}

// Auditor checks every published ballot against the ledger and periodically
// re-runs the tally audit for the tenants it has seen votes for
type Auditor struct {
	db            *gorm.DB
	source        eventSource
	results       *election.ResultsAggregator
	sweepInterval time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	stats   AuditStats
}

// NewAuditor creates an auditor reading from source
func NewAuditor(db *gorm.DB, source eventSource, sweepInterval time.Duration) *Auditor {
	return &Auditor{
		db:            db,
		source:        source,
		results:       election.NewResultsAggregator(db),
		sweepInterval: sweepInterval,
		pending:       map[uuid.UUID]struct{}{},
	}
}

// NewKafkaSource creates a consumer-group reader for the ballot topic
func NewKafkaSource(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

// Consume processes events until ctx is cancelled. A message is committed
// only after it has been checked and any finding stored.
func (a *Auditor) Consume(ctx context.Context) {
	logrus.Info("Starting ballot event consumer")
	for {
		msg, err := a.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Error("Error reading ballot event")
			time.Sleep(time.Second)
			continue
		}

		if err := a.handle(ctx, msg.Value); err != nil {
			// Leave the message uncommitted so it is redelivered
			logrus.WithError(err).WithField("offset", msg.Offset).Error("Failed to audit ballot event")
			time.Sleep(time.Second)
			continue
		}
		if err := a.source.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Warn("Failed to commit ballot event offset")
		}
	}
}

// handle verifies one event. Returned errors are infrastructure failures.
func (a *Auditor) handle(ctx context.Context, payload []byte) error {
	a.mu.Lock()
	a.stats.EventsProcessed++
	a.mu.Unlock()

	var event models.BallotEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.BallotID == uuid.Nil {
		return a.record(ctx, AuditFinding{Kind: FindingMalformedEvent, Detail: truncate(string(payload), 500)})
	}

	tenantID, ballotID := event.TenantID, event.BallotID
	var ballot models.Ballot
	err := a.db.WithContext(ctx).Where("id = ?", event.BallotID).First(&ballot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a.record(ctx, AuditFinding{TenantID: &tenantID, BallotID: &ballotID, Kind: FindingMissingBallot,
			Detail: "published ballot is not in the ledger"})
	}
	if err != nil {
		return fmt.Errorf("failed to load ballot: %w", err)
	}

	if ballot.TenantID != event.TenantID || ballot.CandidateID != event.CandidateID || ballot.Position != event.Position {
		return a.record(ctx, AuditFinding{TenantID: &tenantID, BallotID: &ballotID, Kind: FindingBallotMismatch,
			Detail: fmt.Sprintf("event says %s/%s, ledger says %s/%s", event.Position, event.CandidateID, ballot.Position, ballot.CandidateID)})
	}

	a.mu.Lock()
	a.stats.EventsVerified++
	a.pending[event.TenantID] = struct{}{}
	a.mu.Unlock()
	return nil
}

func (a *Auditor) record(ctx context.Context, f AuditFinding) error {
	if err := a.db.WithContext(ctx).Create(&f).Error; err != nil {
		return fmt.Errorf("failed to store audit finding: %w", err)
	}
	a.mu.Lock()
	a.stats.Findings++
	a.mu.Unlock()
	logrus.WithFields(logrus.Fields{"kind": f.Kind, "tenant_id": f.TenantID, "ballot_id": f.BallotID}).Warn(f.Detail)
	return nil
}

// RunSweeper re-audits pending tenants every sweep interval
func (a *Auditor) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep runs the tally audit for every tenant with newly verified ballots
func (a *Auditor) Sweep(ctx context.Context) {
	a.mu.Lock()
	tenants := make([]uuid.UUID, 0, len(a.pending))
	for id := range a.pending {
		tenants = append(tenants, id)
	}
	a.pending = map[uuid.UUID]struct{}{}
	a.stats.Sweeps++
	a.mu.Unlock()

	for _, tenantID := range tenants {
		audit, err := a.results.Audit(ctx, tenantID)
		if err != nil {
			logrus.WithError(err).WithField("tenant_id", tenantID).Error("Tally audit failed")
			a.mu.Lock()
			a.pending[tenantID] = struct{}{}
			a.mu.Unlock()
			continue
		}
		if audit.Consistent {
			continue
		}
		detail, _ := json.Marshal(audit.Discrepancies)
		id := tenantID
		if err := a.record(ctx, AuditFinding{TenantID: &id, Kind: FindingTallyDiscrepancy, Detail: string(detail)}); err != nil {
			logrus.WithError(err).Error("Failed to store tally discrepancy")
		}
	}
}

// Stats returns a snapshot of the counters
func (a *Auditor) Stats() AuditStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.PendingTenants = len(a.pending)
	s.SweepInterval = a.sweepInterval.String()
	return s
}

// Findings returns the most recent findings, optionally for one tenant
func (a *Auditor) Findings(ctx context.Context, tenantID *uuid.UUID, limit int) ([]AuditFinding, error) {
	q := a.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	findings := []AuditFinding{}
	if err := q.Find(&findings).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit findings: %w", err)
	}
	return findings, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
