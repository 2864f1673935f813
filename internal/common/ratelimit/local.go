package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localLimiter keeps one token bucket per key. Each bucket refills at
// Requests per Window and holds at most Requests tokens.
type localLimiter struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*limiterEntry
	now      func() time.Time

	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewLocalLimiter creates an in-process limiter.
func NewLocalLimiter(config Config) (Limiter, error) {
	config.Type = BackendLocal
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &localLimiter{
		config:      config,
		limiters:    make(map[string]*limiterEntry),
		now:         time.Now,
		lastCleanup: time.Now(),
	}, nil
}

func (rl *localLimiter) Allow(_ context.Context, key string) bool {
	if !rl.config.Enabled {
		return true
	}
	now := rl.now()
	return rl.limiterForKey(key, now).AllowN(now, 1)
}

func (rl *localLimiter) limiterForKey(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) > rl.config.CleanupPeriod {
		rl.cleanup(now)
	}

	entry, exists := rl.limiters[key]
	if !exists {
		every := rl.config.Window / time.Duration(rl.config.Requests)
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(every), rl.config.Requests)}
		rl.limiters[key] = entry

		if len(rl.limiters) > rl.config.MaxKeys {
			rl.cleanup(now)
		}
	}
	entry.lastUsed = now
	return entry.limiter
}

// cleanup drops buckets idle for longer than the cleanup period.
func (rl *localLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.config.CleanupPeriod)
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
	rl.lastCleanup = now
}

func (rl *localLimiter) Stats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"type":        string(BackendLocal),
		"enabled":     rl.config.Enabled,
		"requests":    rl.config.Requests,
		"window":      rl.config.Window.String(),
		"active_keys": len(rl.limiters),
		"max_keys":    rl.config.MaxKeys,
	}
}

func (rl *localLimiter) Health() error {
	return nil
}
