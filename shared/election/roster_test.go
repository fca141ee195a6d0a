package election

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-election-system/shared/models"
)

func TestAddCandidateCreatesVoidOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.candidate(t, f.tenant, "Grace", "President")
	f.candidate(t, f.tenant, "Alan", "President")

	list, err := f.core.Roster.ListByPosition(ctx, f.tenant, "President")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, models.VoidCandidateName, list[2].Name)
	assert.True(t, list[2].IsVoid)

	_, err = f.core.Roster.AddCandidate(ctx, f.tenant, "Grace", "President", "")
	assert.ErrorIs(t, err, ErrDuplicateCandidate)

	_, err = f.core.Roster.AddCandidate(ctx, f.tenant, "void", "President", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.core.Roster.AddCandidate(ctx, f.tenant, "", "President", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEnsureVoidCandidatesBackfills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&models.Candidate{TenantID: f.tenant, Name: "Legacy", Position: "Treasurer"}).Error)
	f.candidate(t, f.tenant, "Grace", "President")

	positions, err := f.core.Roster.EnsureVoidCandidates(ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, []string{"President", "Treasurer"}, positions)

	summaries, err := f.core.Roster.Positions(ctx, f.tenant)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.True(t, s.HasVoid, s.Position)
		assert.Equal(t, 2, s.Candidates)
	}

	// Running it again changes nothing
	_, err = f.core.Roster.EnsureVoidCandidates(ctx, f.tenant)
	require.NoError(t, err)
	all, err := f.core.Roster.List(ctx, f.tenant)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestDeleteCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.partition(t, f.tenant, "Main")
	f.enroll(t, f.tenant, "one@example.edu", "SVG001", p.Code)
	grace := f.candidate(t, f.tenant, "Grace", "President")
	alan := f.candidate(t, f.tenant, "Alan", "President")
	void := f.void(t, f.tenant, "President")

	_, err := f.core.Ledger.CastVote(ctx, f.tenant, "SVG001", grace.ID, f.capability(t, f.tenant, "SVG001"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.core.Roster.Delete(ctx, f.tenant, grace.ID), ErrCandidateHasVotes)
	assert.ErrorIs(t, f.core.Roster.Delete(ctx, f.tenant, void.ID), ErrValidation)
	assert.ErrorIs(t, f.core.Roster.Delete(ctx, f.tenant, uuid.New()), ErrUnknownCandidate)
	assert.NoError(t, f.core.Roster.Delete(ctx, f.tenant, alan.ID))

	other := f.newTenant(t, "other@example.edu")
	assert.ErrorIs(t, f.core.Roster.Delete(ctx, other, grace.ID), ErrUnknownCandidate)
}

func TestVotedCandidateCannotBeRemovedDirectly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.partition(t, f.tenant, "Main")
	f.enroll(t, f.tenant, "one@example.edu", "SVG001", p.Code)
	grace := f.candidate(t, f.tenant, "Grace", "President")
	_, err := f.core.Ledger.CastVote(ctx, f.tenant, "SVG001", grace.ID, f.capability(t, f.tenant, "SVG001"))
	require.NoError(t, err)

	err = f.db.Where("id = ?", grace.ID).Delete(&models.Candidate{}).Error
	require.Error(t, err)
	assert.True(t, isForeignKeyViolation(err), "unexpected error: %v", err)

	audit, err := f.core.Results.Audit(ctx, f.tenant)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
}
