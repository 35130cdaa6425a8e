package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter backed by Redis, for deployments
// running more than one gateway instance against shared quota.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a RedisLimiter from a Redis URL.
func NewRedisLimiter(redisURL string, limit int, window time.Duration) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisLimiter{client: redis.NewClient(opts), limit: limit, window: window}, nil
}

// Admit increments the identity's window counter by cost and admits if the
// result is within the limit. On rejection the increment is refunded, so a
// cost-2 comparison request consumes either both units or none.
func (l *RedisLimiter) Admit(ctx context.Context, identity string, cost int) (Decision, error) {
	if cost <= 0 {
		cost = 1
	}
	key := windowKey(identity)

	pipe := l.client.TxPipeline()
	incr := pipe.IncrBy(ctx, key, int64(cost))
	// NX keeps the original window deadline; a plain EXPIRE would slide it
	// on every request.
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("increment window counter: %w", err)
	}

	count := incr.Val()
	if count > int64(l.limit) {
		if err := l.client.DecrBy(ctx, key, int64(cost)).Err(); err != nil {
			return Decision{}, fmt.Errorf("refund window counter: %w", err)
		}
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = l.window
		}
		remaining := l.limit - int(count) + cost
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: false, Remaining: remaining, RetryAfter: ceilDuration(ttl)}, nil
	}

	return Decision{Allowed: true, Remaining: l.limit - int(count)}, nil
}

// Ping checks Redis connectivity for health reporting.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

func windowKey(identity string) string {
	return "ratelimit:" + identity
}
