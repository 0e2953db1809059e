package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements a fixed window limiter in Redis so limits
// are shared across instances
type DistributedRateLimiter struct {
	redis  redis.UniversalClient
	config *RateLimitConfig
	prefix string
	now    func() time.Time
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient redis.UniversalClient, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "campusgate:ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
		now:    time.Now,
	}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow implements Limiter. On a Redis error the returned decision allows the
// request and the error is reported to the caller.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := rl.key(key)
	limit := rl.config.RequestsPerWindow

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, fmt.Errorf("redis error: %w", err)
	}

	// the window is anchored at its first request
	window := ttl.Val()
	if window <= 0 {
		window = rl.config.WindowDuration
		if err := rl.redis.PExpire(ctx, redisKey, window).Err(); err != nil {
			return Decision{Allowed: true, Limit: limit, Remaining: limit}, fmt.Errorf("redis error: %w", err)
		}
	}

	count := int(incr.Val())
	d := Decision{
		Allowed: count <= limit,
		Limit:   limit,
		Reset:   rl.now().Add(window),
	}
	if d.Allowed {
		d.Remaining = limit - count
	} else {
		d.RetryAfter = window
	}
	return d, nil
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// HealthCheck verifies Redis connectivity for rate limiting
func (rl *DistributedRateLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}
