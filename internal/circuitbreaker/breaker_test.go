package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-hub/internal/common/errors"
)

func testConfig() Config {
	return Config{
		MaxFailures:           2,
		Timeout:               50 * time.Millisecond,
		MaxConcurrentRequests: 1,
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	cb := New("push.example.com", testConfig(), nil)
	ctx := context.Background()
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 2; i++ {
		err := cb.Execute(ctx, func() error { return fmt.Errorf("failure %d", i) })
		assert.Error(t, err)
		assert.False(t, IsOpen(err))
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, IsOpen(err))
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_IgnoredErrors(t *testing.T) {
	gone := stderrors.New("gone")
	cfg := testConfig()
	cfg.Ignore = func(err error) bool { return stderrors.Is(err, gone) }
	cb := New("ignore", cfg, nil)

	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func() error { return gone })
		assert.ErrorIs(t, err, gone)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 5, cb.Stats().Successes)
}

func TestBreaker_DefaultIgnoresClientErrors(t *testing.T) {
	cb := New("client", testConfig(), nil)
	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return errors.NotFoundError("thing") })
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_InvalidConfigFallsBack(t *testing.T) {
	cb := New("fallback", Config{}, nil)
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
}

func TestManager(t *testing.T) {
	m := NewManager(testConfig(), nil)
	ctx := context.Background()

	assert.Same(t, m.Get("a"), m.Get("a"))

	for i := 0; i < 2; i++ {
		m.Execute(ctx, "b", func() error { return fmt.Errorf("down") })
	}
	require.NoError(t, m.Execute(ctx, "a", func() error { return nil }))

	stats := m.AllStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a", stats[0].Name)
	assert.Equal(t, "closed", stats[0].State)
	assert.Equal(t, "open", stats[1].State)
	assert.Equal(t, 2, stats[1].ConsecutiveFailures)
}
