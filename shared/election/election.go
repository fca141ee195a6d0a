// Package election holds the rules that keep an election honest: who may
// vote, how a voter proves who they are, and the ledger that accepts at most
// one ballot per voter per position.
package election

import (
	"time"

	"gorm.io/gorm"
)

// Options configures a Core
type Options struct {
	CapabilitySecret string
	VotingSessionTTL time.Duration
	TokenTTL         time.Duration
	TokenRateWindow  time.Duration
	VerifyLinkBase   string
	VotingLinkBase   string
	CodeDigits       int
	CodeMaxAttempts  int
	Notifier         Notifier
	Publisher        BallotEventPublisher
	Clock            Clock
	CodeGenerator    CodeGenerator
}

// Core wires every component against one database
type Core struct {
	Eligibility  *EligibilityStore
	Partitions   *PartitionRegistry
	Tokens       *TokenManager
	Capabilities *CapabilityIssuer
	Ledger       *BallotLedger
	Results      *ResultsAggregator
	Roster       *CandidateRoster
	Links        *LinkRegistry
}

// NewCore builds every component from opts
func NewCore(db *gorm.DB, opts Options) *Core {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}

	partitionOpts := []PartitionOption{}
	if opts.CodeDigits > 0 && opts.CodeMaxAttempts > 0 {
		partitionOpts = append(partitionOpts, WithCodeSpace(opts.CodeDigits, opts.CodeMaxAttempts))
	}
	if opts.CodeGenerator != nil {
		partitionOpts = append(partitionOpts, WithCodeGenerator(opts.CodeGenerator))
	}

	eligibility := NewEligibilityStore(db, clock)
	capabilities := NewCapabilityIssuer(opts.CapabilitySecret, opts.VotingSessionTTL, clock)

	return &Core{
		Eligibility: eligibility,
		Partitions:  NewPartitionRegistry(db, partitionOpts...),
		Tokens: NewTokenManager(db, eligibility, opts.Notifier, TokenManagerConfig{
			TTL:        opts.TokenTTL,
			RateWindow: opts.TokenRateWindow,
			LinkBase:   opts.VerifyLinkBase,
			Clock:      clock,
		}),
		Capabilities: capabilities,
		Ledger:       NewBallotLedger(db, capabilities, opts.Publisher, clock),
		Results:      NewResultsAggregator(db),
		Roster:       NewCandidateRoster(db),
		Links:        NewLinkRegistry(db, opts.VotingLinkBase),
	}
}
