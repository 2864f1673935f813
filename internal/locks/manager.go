// Package locks coordinates work that must run on exactly one instance,
// such as firing a scheduled pipeline.
package locks

import (
	"context"
	"sync"
	"time"
)

// Claimer grants a key to the first caller until the claim expires. A claim
// is never released early, so every instance asking for the same key during
// the TTL is refused.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// LocalClaimer is a Claimer for single-instance deployments.
type LocalClaimer struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

// NewLocalClaimer creates an in-process Claimer.
func NewLocalClaimer() *LocalClaimer {
	return &LocalClaimer{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (l *LocalClaimer) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, expires := range l.claims {
		if !expires.After(now) {
			delete(l.claims, k)
		}
	}

	if _, held := l.claims[key]; held {
		return false, nil
	}
	l.claims[key] = now.Add(ttl)
	return true, nil
}

var _ Claimer = (*LocalClaimer)(nil)
