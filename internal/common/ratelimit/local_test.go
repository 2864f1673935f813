package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Enabled: true, Requests: 5, Window: time.Second}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendLocal, cfg.Type)
	assert.Equal(t, 10000, cfg.MaxKeys)

	cfg = Config{Enabled: true, Requests: 0, Window: time.Second}
	assert.Error(t, cfg.Validate())

	cfg = Config{Enabled: true, Requests: 1, Window: 0}
	assert.Error(t, cfg.Validate())

	cfg = Config{Enabled: true, Requests: 1, Window: time.Second, Type: "memcached"}
	assert.Error(t, cfg.Validate())

	cfg = Config{Enabled: false}
	assert.NoError(t, cfg.Validate())

	cfg = Config{Enabled: true, Requests: 1, Window: time.Second, Type: BackendDistributed}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ratelimit:", cfg.KeyPrefix)
}

func TestLocalLimiter_PerKey(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Enabled: true, Requests: 2, Window: time.Minute})
	require.NoError(t, err)

	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.(*localLimiter).now = func() time.Time { return clock }
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "a"))
	assert.True(t, limiter.Allow(ctx, "a"))
	assert.False(t, limiter.Allow(ctx, "a"))
	assert.True(t, limiter.Allow(ctx, "b"), "keys have their own bucket")

	clock = clock.Add(30 * time.Second)
	assert.True(t, limiter.Allow(ctx, "a"), "one token refills every window/requests")
	assert.False(t, limiter.Allow(ctx, "a"))
}

func TestLocalLimiter_Disabled(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Enabled: false})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow(context.Background(), "k"))
	}
}

func TestLocalLimiter_Cleanup(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Enabled: true, Requests: 1, Window: time.Second, CleanupPeriod: time.Minute})
	require.NoError(t, err)

	l := limiter.(*localLimiter)
	clock := time.Now()
	l.now = func() time.Time { return clock }

	l.Allow(context.Background(), "old")
	clock = clock.Add(2 * time.Minute)
	l.Allow(context.Background(), "new")

	stats := limiter.Stats()
	assert.Equal(t, 1, stats["active_keys"])
	assert.NoError(t, limiter.Health())
}
