package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-hub/internal/redis"
)

func TestLocalClaimer(t *testing.T) {
	c := NewLocalClaimer()
	clock := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	ok, err := c.Claim(ctx, "schedule:p1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = c.Claim(ctx, "schedule:p1", time.Minute)
	assert.False(t, ok, "second claim inside the TTL is refused")

	ok, _ = c.Claim(ctx, "schedule:p2", time.Minute)
	assert.True(t, ok)

	clock = clock.Add(time.Minute)
	ok, _ = c.Claim(ctx, "schedule:p1", time.Minute)
	assert.True(t, ok, "claim is free again once expired")
}

func TestRedsyncClaimer(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	first, err := NewRedsyncClaimer(client)
	require.NoError(t, err)
	second, err := NewRedsyncClaimer(client)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := first.Claim(ctx, "schedule:p1:1700000000", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:schedule:p1:1700000000"))

	ok, err = second.Claim(ctx, "schedule:p1:1700000000", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "another instance cannot claim the same fire")

	ok, err = second.Claim(ctx, "schedule:p1:1700000060", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedsyncClaimer_NilClient(t *testing.T) {
	_, err := NewRedsyncClaimer(nil)
	assert.Error(t, err)
}
