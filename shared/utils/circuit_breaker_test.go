package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewBreaker("mail", 2, time.Minute)
	b.now = func() time.Time { return now }
	ctx := context.Background()
	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, b.Do(ctx, fail), boom)
	assert.Equal(t, BreakerClosed, b.State())
	assert.ErrorIs(t, b.Do(ctx, fail), boom)
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, b.Do(ctx, fail), boom)
	assert.Equal(t, BreakerOpen, b.State(), "a failed probe reopens")

	now = now.Add(2 * time.Minute)
	assert.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := NewBreaker("mail", 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestNilRedisStoreFailsOpen(t *testing.T) {
	var store *RedisStore
	allowed, retry, err := store.Allow(context.Background(), "ip", 1, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, retry)
	assert.NoError(t, store.Close())
	assert.Error(t, store.Ping(context.Background()))
}
