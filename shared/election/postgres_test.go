//go:build postgres

// Run with: TEST_POSTGRES_DSN="host=localhost user=postgres password=password dbname=election_test sslmode=disable" go test -tags postgres ./shared/election/
// These tests use a real connection pool, so statements from different
// goroutines interleave instead of queueing on one SQLite connection.

package election

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/models"
)

func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN is not set")
	}
	db, err := config.ConnectPostgres(dsn)
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	f := newFixtureWithDB(t, db)
	t.Cleanup(func() { dropTenant(t, db, f.tenant) })
	return f
}

// dropTenant removes everything a test tenant owns, children first
func dropTenant(t *testing.T, db *gorm.DB, tenant uuid.UUID) {
	for _, m := range []interface{}{
		&models.Ballot{}, &models.VerificationToken{}, &models.VoterRecord{},
		&models.Candidate{}, &models.Partition{}, &models.VotingLink{},
	} {
		if err := db.Where("tenant_id = ?", tenant).Delete(m).Error; err != nil {
			t.Logf("cleanup: %v", err)
		}
	}
	db.Where("id = ?", tenant).Delete(&models.Tenant{})
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func TestPostgresAtMostOneBallotUnderContention(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()
	p := f.partition(t, f.tenant, "Main")
	f.enroll(t, f.tenant, "svg003@example.edu", "SVG003", p.Code)
	alice := f.candidate(t, f.tenant, "Alice", "Treasurer")
	bola := f.candidate(t, f.tenant, "Bola", "Treasurer")
	capability := f.capability(t, f.tenant, "SVG003")

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, duplicates := 0, 0
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		choice := alice.ID
		if i%2 == 1 {
			choice = bola.ID
		}
		wg.Add(1)
		go func(choice uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.core.Ledger.CastVote(ctx, f.tenant, "SVG003", choice, capability)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateVote):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(choice)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)
	assert.Equal(t, int64(1), f.positionTotal(t, f.tenant, "Treasurer"))

	audit, err := f.core.Results.Audit(ctx, f.tenant)
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "discrepancies: %+v", audit.Discrepancies)
}

func TestPostgresConsumeIsSingleUseUnderConcurrency(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()
	setupVoter(t, f)
	require.NoError(t, f.core.Tokens.RequestToken(ctx, f.tenant, "ada@example.edu", "SVG001"))
	raw := f.notifier.lastToken(t)

	const attempts = 50
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.core.Tokens.Consume(ctx, raw)
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyUsed):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestPostgresEnrollRacingCodeDeletion(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()
	p := f.partition(t, f.tenant, "Main")

	const voters = 20
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			matric := fmt.Sprintf("SVG%03d", i+1)
			_, err := f.core.Eligibility.EnrollOne(ctx, f.tenant, EnrollEntry{Email: fmt.Sprintf("v%d@example.edu", i), MatricID: matric, PartitionCode: p.Code})
			if err != nil && !errors.Is(err, ErrUnknownPartition) {
				t.Errorf("enroll %s: %v", matric, err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		err := f.core.Partitions.Delete(ctx, f.tenant, p.Code)
		if err != nil && !errors.Is(err, ErrPartitionInUse) {
			t.Errorf("delete: %v", err)
		}
	}()
	close(start)
	wg.Wait()

	// No voter may be left pointing at a code that no longer exists
	var dangling int64
	require.NoError(t, f.db.Model(&models.VoterRecord{}).
		Where("tenant_id = ?", f.tenant).
		Where("NOT EXISTS (SELECT 1 FROM partitions p WHERE p.tenant_id = voter_records.tenant_id AND p.code = voter_records.partition_code)").
		Count(&dangling).Error)
	assert.Zero(t, dangling)
}

func TestPostgresCandidateDeletionRacingVotes(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()
	p := f.partition(t, f.tenant, "Main")
	target := f.candidate(t, f.tenant, "Alice", "President")

	const voters = 20
	capabilities := make([]string, voters)
	for i := range capabilities {
		matric := fmt.Sprintf("SVG%03d", i+1)
		f.enroll(t, f.tenant, fmt.Sprintf("v%d@example.edu", i), matric, p.Code)
		capabilities[i] = f.capability(t, f.tenant, matric)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.core.Ledger.CastVote(ctx, f.tenant, fmt.Sprintf("SVG%03d", i+1), target.ID, capabilities[i])
			if err != nil && !errors.Is(err, ErrUnknownCandidate) {
				t.Errorf("vote: %v", err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		err := f.core.Roster.Delete(ctx, f.tenant, target.ID)
		if err != nil && !errors.Is(err, ErrCandidateHasVotes) {
			t.Errorf("delete: %v", err)
		}
	}()
	close(start)
	wg.Wait()

	audit, err := f.core.Results.Audit(ctx, f.tenant)
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "discrepancies: %+v", audit.Discrepancies)
}
