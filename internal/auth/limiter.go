package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts failed admin authentications per client key.
type Limiter interface {
	// Blocked reports whether key is over the limit and how long until the window resets.
	Blocked(ctx context.Context, key string) (bool, time.Duration, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

const limiterKeyPrefix = "survey:admin:auth:fail:"

// RedisLimiter is a fixed-window failure counter stored in Redis.
type RedisLimiter struct {
	rdb         redis.Cmdable
	maxFailures int64
	window      time.Duration
}

// NewRedisLimiter creates a limiter allowing maxFailures failures per window.
func NewRedisLimiter(rdb redis.Cmdable, maxFailures int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, maxFailures: int64(maxFailures), window: window}
}

// Blocked reports whether key reached the failure limit in the current window.
func (l *RedisLimiter) Blocked(ctx context.Context, key string) (bool, time.Duration, error) {
	n, err := l.rdb.Get(ctx, limiterKeyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("read failure count: %w", err)
	}
	if n < l.maxFailures {
		return false, 0, nil
	}
	ttl, err := l.rdb.TTL(ctx, limiterKeyPrefix+key).Result()
	if err != nil {
		return true, l.window, fmt.Errorf("read failure window: %w", err)
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return true, ttl, nil
}

// RecordFailure increments the counter, starting a new window on the first failure.
func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) error {
	n, err := l.rdb.Incr(ctx, limiterKeyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, limiterKeyPrefix+key, l.window).Err(); err != nil {
			return fmt.Errorf("start failure window: %w", err)
		}
	}
	return nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, limiterKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}
