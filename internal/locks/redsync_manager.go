package locks

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/redis"
)

// RedsyncClaimer claims keys with the Redlock algorithm so that several
// instances sharing a Redis agree on a single owner.
type RedsyncClaimer struct {
	redsync *redsync.Redsync
}

// NewRedsyncClaimer creates a Claimer over a connected Redis client.
func NewRedsyncClaimer(redisClient *redis.Client) (*RedsyncClaimer, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GoRedis())
	return &RedsyncClaimer{redsync: redsync.New(pool)}, nil
}

func (r *RedsyncClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	mutex := r.redsync.NewMutex(fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	err := mutex.TryLockContext(ctx)
	if err == nil {
		return true, nil
	}

	var taken *redsync.ErrTaken
	if stderrors.As(err, &taken) || stderrors.Is(err, redsync.ErrFailed) {
		return false, nil
	}
	return false, errors.InternalError("failed to claim distributed lock", err)
}

var _ Claimer = (*RedsyncClaimer)(nil)
