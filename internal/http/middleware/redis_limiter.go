package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisFixedWindowLimiter counts hits in redis so the limit holds across
// replicas. The key expires with the window; the first hit sets the TTL.
type redisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) Limiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &redisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *redisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	dataKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, dataKey)
	ttl := pipe.PTTL(ctx, dataKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := incr.Val()
	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = window
		if err := l.client.PExpire(ctx, dataKey, window).Err(); err != nil {
			return Decision{}, err
		}
	}
	resetAt := time.Now().Add(remaining)

	if count > int64(limit) {
		return Decision{
			Allowed:    false,
			RetryAfter: remaining,
			Remaining:  0,
			ResetAt:    resetAt,
		}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
