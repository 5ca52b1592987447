package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter keyed per caller.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit against key. The window starts at the first hit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			// a counter without a ttl would block the caller forever
			_ = r.client.Del(ctx, key)
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return n <= int64(limit), nil
}
