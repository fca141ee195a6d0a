package election

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomNumericCodeWidth(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := RandomNumericCode(5)
		require.NoError(t, err)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 10000)
		assert.LessOrEqual(t, n, 99999)
	}
}

func TestCreatePartition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.core.Partitions.Create(ctx, f.tenant, "  Batch-2025 ", " final years ")
	require.NoError(t, err)
	assert.Equal(t, "Batch-2025", p.Name)
	assert.Equal(t, "final years", p.Description)
	assert.True(t, p.IsActive)
	assert.Len(t, p.Code, 5)

	_, err = f.core.Partitions.Create(ctx, f.tenant, "Batch-2025", "")
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = f.core.Partitions.Create(ctx, f.tenant, "   ", "")
	assert.ErrorIs(t, err, ErrValidation)

	// Names are only unique within a tenant
	other := f.newTenant(t, "other@example.edu")
	_, err = f.core.Partitions.Create(ctx, other, "Batch-2025", "")
	assert.NoError(t, err)
}

func TestCreatePartitionRetriesOnCodeCollision(t *testing.T) {
	db := newTestDB(t)
	gen, calls := sequentialCodes("11111", "11111", "11111", "22222")
	registry := NewPartitionRegistry(db, WithCodeGenerator(gen))
	f := &fixture{db: db}
	tenant := f.newTenant(t, "admin@example.edu")

	first, err := registry.Create(context.Background(), tenant, "First", "")
	require.NoError(t, err)
	assert.Equal(t, "11111", first.Code)

	second, err := registry.Create(context.Background(), tenant, "Second", "")
	require.NoError(t, err)
	assert.Equal(t, "22222", second.Code)
	assert.Equal(t, 4, *calls)
}

func TestCreatePartitionCodeSpaceExhausted(t *testing.T) {
	db := newTestDB(t)
	gen, calls := sequentialCodes("11111")
	registry := NewPartitionRegistry(db, WithCodeGenerator(gen), WithCodeSpace(5, 10))
	f := &fixture{db: db}
	tenant := f.newTenant(t, "admin@example.edu")

	_, err := registry.Create(context.Background(), tenant, "First", "")
	require.NoError(t, err)

	_, err = registry.Create(context.Background(), tenant, "Second", "")
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, 11, *calls)

	_, err = registry.GenerateCode(context.Background(), tenant)
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
}

func TestGenerateCodeSkipsUsedCodes(t *testing.T) {
	db := newTestDB(t)
	gen, _ := sequentialCodes("11111", "11111", "33333")
	registry := NewPartitionRegistry(db, WithCodeGenerator(gen))
	f := &fixture{db: db}
	tenant := f.newTenant(t, "admin@example.edu")

	_, err := registry.Create(context.Background(), tenant, "First", "")
	require.NoError(t, err)

	code, err := registry.GenerateCode(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "33333", code)
}

func TestDeletePartitionInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.partition(t, f.tenant, "Batch-2025")
	f.enroll(t, f.tenant, "last@example.edu", "SVG050", p.Code)

	err := f.core.Partitions.Delete(ctx, f.tenant, p.Code)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartitionInUse)

	var inUse *PartitionInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, int64(1), inUse.BoundVoters)
	assert.Contains(t, err.Error(), "1 voter(s)")

	require.NoError(t, f.core.Eligibility.Delete(ctx, f.tenant, "SVG050"))
	require.NoError(t, f.core.Partitions.Delete(ctx, f.tenant, p.Code))

	_, err = f.core.Partitions.Get(ctx, f.tenant, p.Code)
	assert.ErrorIs(t, err, ErrUnknownPartition)
	assert.ErrorIs(t, f.core.Partitions.Delete(ctx, f.tenant, p.Code), ErrUnknownPartition)
}

func TestDeactivationIsNotRetroactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.partition(t, f.tenant, "Main")
	f.enroll(t, f.tenant, "ada@example.edu", "SVG001", p.Code)
	f.enroll(t, f.tenant, "bob@example.edu", "SVG002", f.partition(t, f.tenant, "Other").Code)
	c := f.candidate(t, f.tenant, "Grace", "President")

	off := false
	updated, err := f.core.Partitions.Update(ctx, f.tenant, p.Code, PartitionUpdate{IsActive: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	// New bindings are refused
	_, err = f.core.Eligibility.Bind(ctx, f.tenant, "SVG002", p.Code)
	assert.ErrorIs(t, err, ErrInactivePartition)

	// The already-bound voter still verifies and votes
	voter, err := f.core.Eligibility.VerifyCode(ctx, f.tenant, "ada@example.edu", "SVG001", p.Code)
	require.NoError(t, err)
	capability, _, err := f.core.Capabilities.Issue(voter)
	require.NoError(t, err)
	_, err = f.core.Ledger.CastVote(ctx, f.tenant, "SVG001", c.ID, capability)
	assert.NoError(t, err)
}

func TestUpdatePartition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.partition(t, f.tenant, "Alpha")
	f.partition(t, f.tenant, "Beta")

	name := "Beta"
	_, err := f.core.Partitions.Update(ctx, f.tenant, a.Code, PartitionUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrDuplicateName)

	name = "Gamma"
	desc := "renamed"
	p, err := f.core.Partitions.Update(ctx, f.tenant, a.Code, PartitionUpdate{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Gamma", p.Name)
	assert.Equal(t, "renamed", p.Description)

	_, err = f.core.Partitions.Update(ctx, f.tenant, "00000", PartitionUpdate{Name: &desc})
	assert.ErrorIs(t, err, ErrUnknownPartition)

	_, err = f.core.Partitions.Update(ctx, f.tenant, a.Code, PartitionUpdate{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListPartitionsWithCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.partition(t, f.tenant, "Alpha")
	b := f.partition(t, f.tenant, "Beta")
	f.enroll(t, f.tenant, "one@example.edu", "SVG001", a.Code)
	f.enroll(t, f.tenant, "two@example.edu", "SVG002", a.Code)
	c := f.candidate(t, f.tenant, "Grace", "President")
	_, err := f.core.Ledger.CastVote(ctx, f.tenant, "SVG002", c.ID, f.capability(t, f.tenant, "SVG002"))
	require.NoError(t, err)

	list, err := f.core.Partitions.List(ctx, f.tenant)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byCode := map[string]int64{}
	for _, s := range list {
		byCode[s.Code] = s.VoterCount
		if s.Code == a.Code {
			assert.Equal(t, int64(1), s.VotedCount)
			assert.Equal(t, int64(1), s.Pending)
		}
	}
	assert.Equal(t, int64(2), byCode[a.Code])
	assert.Equal(t, int64(0), byCode[b.Code])
}
