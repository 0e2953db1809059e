package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
}

// RedisClient wraps the shared Redis connection used for rate limiting and
// the cross-instance API key cache
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client and pings it
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*RedisClient, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Client returns the underlying client
func (c *RedisClient) Client() redis.UniversalClient {
	return c.client
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// PoolStats returns connection pool statistics
func (c *RedisClient) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}

// RedisKeyFinder shares positive API key lookups between instances. Like
// auth.CachedKeyFinder it never caches misses, and callers still check expiry
// on every hit.
type RedisKeyFinder struct {
	client redis.UniversalClient
	next   auth.APIKeyFinder
	ttl    time.Duration
	prefix string
}

// NewRedisKeyFinder wraps next with a Redis cache of the given TTL
func NewRedisKeyFinder(client redis.UniversalClient, next auth.APIKeyFinder, ttl time.Duration) *RedisKeyFinder {
	if ttl <= 0 {
		ttl = auth.DefaultKeyCacheTTL
	}
	return &RedisKeyFinder{client: client, next: next, ttl: ttl, prefix: "campusgate:apikey:"}
}

// cachedKey is the Redis form of auth.APIKey, which hides its hash from JSON
type cachedKey struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	KeyHash   string    `json:"key_hash"`
	KeyPrefix string    `json:"key_prefix"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// FindAPIKeyByHash implements auth.APIKeyFinder. Redis errors fall through
// to the store.
func (f *RedisKeyFinder) FindAPIKeyByHash(ctx context.Context, keyHash string) (*auth.APIKey, error) {
	key := f.prefix + keyHash

	data, err := f.client.Get(ctx, key).Bytes()
	if err == nil {
		var ck cachedKey
		if jsonErr := json.Unmarshal(data, &ck); jsonErr == nil {
			return &auth.APIKey{
				ID: ck.ID, UserID: ck.UserID, KeyHash: ck.KeyHash,
				KeyPrefix: ck.KeyPrefix, ExpiresAt: ck.ExpiresAt, CreatedAt: ck.CreatedAt,
			}, nil
		}
		// corrupt entry
		f.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		// cache unavailable; the store is authoritative
		return f.next.FindAPIKeyByHash(ctx, keyHash)
	}

	found, err := f.next.FindAPIKeyByHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedKey{
		ID: found.ID, UserID: found.UserID, KeyHash: found.KeyHash,
		KeyPrefix: found.KeyPrefix, ExpiresAt: found.ExpiresAt, CreatedAt: found.CreatedAt,
	})
	if err == nil {
		ttl := f.ttl
		if remaining := time.Until(found.ExpiresAt); remaining > 0 && remaining < ttl {
			ttl = remaining
		}
		f.client.Set(ctx, key, payload, ttl)
	}
	return found, nil
}

// Invalidate drops one cached key
func (f *RedisKeyFinder) Invalidate(ctx context.Context, keyHash string) error {
	return f.client.Del(ctx, f.prefix+keyHash).Err()
}
