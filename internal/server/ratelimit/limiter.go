// Package ratelimit throttles abuse-prone endpoints with fixed-window
// counters kept in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/redis/go-redis/v9"
)

// Limiter keeps a hit counter per key. Refusals are reported as
// common.ErrRateLimited.
type Limiter interface {
	// Allow counts one hit for key and refuses it once the window is full.
	Allow(ctx context.Context, key string) error
	// Check refuses key when its window is already full, without counting.
	Check(ctx context.Context, key string) error
	// Reset forgets every hit recorded for key.
	Reset(ctx context.Context, key string) error
}

// Noop admits everything. Used when no Redis is configured.
type Noop struct{}

func (Noop) Allow(context.Context, string) error { return nil }
func (Noop) Check(context.Context, string) error { return nil }
func (Noop) Reset(context.Context, string) error { return nil }

// RedisLimiter allows at most Max hits per key in each Window.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{redis: client, prefix: prefix, max: max, window: window}
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + ":" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	k := l.key(key)

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	// The first hit opens the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	return l.verdict(count)
}

func (l *RedisLimiter) Check(ctx context.Context, key string) error {
	v, err := l.redis.Get(ctx, l.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	count, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("rate limiter: bad counter %q: %w", v, err)
	}
	// Check runs before the attempt it guards, so a full window refuses.
	return l.verdict(count + 1)
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (l *RedisLimiter) verdict(count int64) error {
	if count > int64(l.max) {
		return fmt.Errorf("%w: try again in %s", common.ErrRateLimited, l.window)
	}
	return nil
}
