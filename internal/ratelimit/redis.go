// FilePath: internal/ratelimit/redis.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter backs the shared rate-limit token bucket and dedup cache with
// Redis, so multiple notifier instances behind a shared REDIS_ADDR coordinate
// rather than each keeping an independent in-memory bucket.
type RedisLimiter struct {
	client      *redis.Client
	ratePerSec  int
	dedupWindow time.Duration
	bucketKey   string
}

// NewRedisLimiter constructs a Limiter backed by addr.
func NewRedisLimiter(addr string, ratePerSec int, dedupWindow time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		ratePerSec:  ratePerSec,
		dedupWindow: dedupWindow,
		bucketKey:   "outagewatch:notify:bucket",
	}
}

// Close releases the underlying Redis connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// Allow consumes one token from a fixed-window counter keyed by the current
// second, capped at ratePerSec, blocking with a short sleep while exhausted.
func (l *RedisLimiter) Allow(ctx context.Context) error {
	for {
		now := time.Now()
		windowKey := fmt.Sprintf("%s:%d", l.bucketKey, now.Unix())

		count, err := l.client.Incr(ctx, windowKey).Result()
		if err != nil {
			return fmt.Errorf("error incrementing rate bucket: %w", err)
		}
		if count == 1 {
			l.client.Expire(ctx, windowKey, 2*time.Second)
		}
		if count <= int64(l.ratePerSec) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second / time.Duration(l.ratePerSec)):
		}
	}
}

// ShouldSend uses SET NX with a TTL of the dedup window as an atomic
// check-and-mark, mirroring the in-memory sendRecord map's semantics.
func (l *RedisLimiter) ShouldSend(ctx context.Context, subscriberID, eventID string) (bool, error) {
	key := fmt.Sprintf("outagewatch:notify:dedup:%s:%s", subscriberID, eventID)
	ok, err := l.client.SetNX(ctx, key, "1", l.dedupWindow).Result()
	if err != nil {
		return false, fmt.Errorf("error checking dedup key: %w", err)
	}
	return ok, nil
}
