package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker serializes batch runs across instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RunLock is a Redis SET NX lock. The TTL caps how long a crashed run can
// block its key.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

// DefaultLockTTL keeps a completed run's key held long enough that a plain
// same-day re-trigger stays a no-op.
const DefaultLockTTL = 24 * time.Hour

// NewRunLock creates a Redis-backed run lock.
func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RunLock{client: client, ttl: ttl}
}

func (l *RunLock) Acquire(ctx context.Context, key string) (bool, error) {
	return l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

func (l *RunLock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}
