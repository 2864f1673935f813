// Package ratelimit throttles callers per key, either in process through
// golang.org/x/time/rate or across instances through a Redis sliding window.
//
//	limiter, err := ratelimit.New(ratelimit.Config{Enabled: true, Requests: 60, Window: time.Minute}, nil)
//	router.Use(ratelimit.HTTPMiddleware(limiter, ratelimit.IPKey))
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
	Stats() map[string]interface{}
	Health() error
}

// RedisInterface is the part of the Redis client the distributed limiter needs.
type RedisInterface interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
	Health() error
}
