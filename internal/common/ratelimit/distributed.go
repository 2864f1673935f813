package ratelimit

import (
	"context"
	"fmt"
	"time"

	"pipeline-hub/internal/common/logging"
)

// distributedLimiter counts hits in a Redis sorted set per key, so every
// instance shares the same window.
type distributedLimiter struct {
	config      Config
	redisClient RedisInterface
	logger      logging.Logger
}

// NewDistributedLimiter creates a Redis-backed limiter.
func NewDistributedLimiter(config Config, redisClient RedisInterface) (Limiter, error) {
	config.Type = BackendDistributed
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required for distributed rate limiter")
	}

	return &distributedLimiter{
		config:      config,
		redisClient: redisClient,
		logger:      logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "ratelimit"}),
	}, nil
}

// Allow fails open when Redis cannot be reached.
func (rl *distributedLimiter) Allow(ctx context.Context, key string) bool {
	if !rl.config.Enabled {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	allowed, _, err := rl.redisClient.CheckRateLimit(ctx, rl.config.KeyPrefix+key, rl.config.Requests, rl.config.Window)
	if err != nil {
		rl.logger.Warn("Rate limit check failed, allowing request",
			logging.Field{Key: "key", Value: key},
			logging.Err(err),
		)
		return true
	}
	return allowed
}

func (rl *distributedLimiter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"type":       string(BackendDistributed),
		"enabled":    rl.config.Enabled,
		"requests":   rl.config.Requests,
		"window":     rl.config.Window.String(),
		"backend":    "redis",
		"key_prefix": rl.config.KeyPrefix,
	}
}

func (rl *distributedLimiter) Health() error {
	return rl.redisClient.Health()
}
