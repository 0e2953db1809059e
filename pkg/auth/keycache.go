package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultKeyCacheSize = 1024
	DefaultKeyCacheTTL  = time.Minute
)

// CachedKeyFinder keeps recent positive API key lookups in a bounded LRU and
// collapses concurrent lookups of the same hash into one store call. Misses
// are never cached. Expiry is still checked by the caller on every hit.
type CachedKeyFinder struct {
	next  APIKeyFinder
	cache *expirable.LRU[string, APIKey]
	group singleflight.Group
}

// NewCachedKeyFinder wraps next with a cache of the given size and TTL
func NewCachedKeyFinder(next APIKeyFinder, size int, ttl time.Duration) *CachedKeyFinder {
	if size <= 0 {
		size = DefaultKeyCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultKeyCacheTTL
	}
	return &CachedKeyFinder{
		next:  next,
		cache: expirable.NewLRU[string, APIKey](size, nil, ttl),
	}
}

// FindAPIKeyByHash implements APIKeyFinder
func (c *CachedKeyFinder) FindAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	if key, ok := c.cache.Get(keyHash); ok {
		return &key, nil
	}

	v, err, _ := c.group.Do(keyHash, func() (interface{}, error) {
		key, err := c.next.FindAPIKeyByHash(ctx, keyHash)
		if err != nil {
			return nil, err
		}
		c.cache.Add(keyHash, *key)
		return *key, nil
	})
	if err != nil {
		return nil, err
	}

	key := v.(APIKey)
	return &key, nil
}

// Len returns the number of cached keys
func (c *CachedKeyFinder) Len() int {
	return c.cache.Len()
}

// Purge drops every cached entry
func (c *CachedKeyFinder) Purge() {
	c.cache.Purge()
}
