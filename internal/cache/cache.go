// Package cache accelerates lookups for hot codes. Entries here are a
// derived copy of (short code -> target); the durable store remains the
// source of truth and losing the cache never loses a mapping.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a code has no cached entry.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "url:"

// Cache is the resolution cache over a shared Redis instance.
type Cache struct {
	client      *redis.Client
	promotedTTL time.Duration
}

// New creates a resolution cache. promotedTTL bounds the staleness of
// entries promoted from the durable store; 0 means the default of one hour.
func New(client *redis.Client, promotedTTL time.Duration) *Cache {
	if promotedTTL == 0 {
		promotedTTL = time.Hour
	}

	return &Cache{
		client:      client,
		promotedTTL: promotedTTL,
	}
}

// Seed caches a freshly allocated mapping without expiry. A new mapping is
// write-once and immutable, so it cannot go stale; caching it indefinitely
// saves a store round-trip forever.
func (c *Cache) Seed(ctx context.Context, code, target string) error {
	const op = "cache.Cache.Seed"

	if err := c.client.Set(ctx, keyPrefix+code, target, 0).Err(); err != nil {
		return fmt.Errorf("%s: failed to seed cache: %w", op, err)
	}

	return nil
}

// Promote caches a mapping sourced from the durable store on a miss, with a
// bounded TTL so an externally corrected record eventually becomes visible.
func (c *Cache) Promote(ctx context.Context, code, target string) error {
	const op = "cache.Cache.Promote"

	if err := c.client.Set(ctx, keyPrefix+code, target, c.promotedTTL).Err(); err != nil {
		return fmt.Errorf("%s: failed to promote into cache: %w", op, err)
	}

	return nil
}

// Lookup returns the cached target for a code, or ErrCacheMiss.
func (c *Cache) Lookup(ctx context.Context, code string) (string, error) {
	const op = "cache.Cache.Lookup"

	target, err := c.client.Get(ctx, keyPrefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, ErrCacheMiss)
		}

		return "", fmt.Errorf("%s: failed to look up cache: %w", op, err)
	}

	return target, nil
}

// Evict drops a cached entry. Resolution falls back to the durable store on
// the next lookup.
func (c *Cache) Evict(ctx context.Context, code string) error {
	const op = "cache.Cache.Evict"

	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		return fmt.Errorf("%s: failed to evict cache entry: %w", op, err)
	}

	return nil
}
