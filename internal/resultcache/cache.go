// Package resultcache memoizes successful enrichment responses per canonical
// key so repeated requests do not re-invoke the provider.
//
// The cache is deliberately forgiving: a backing-store outage or a corrupt
// entry degrades to a miss and a direct provider call, never to a failed
// request. Failure responses are never written, so a transient provider
// failure cannot be frozen into the cache.
package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"enrichment-service/internal/cache"
	"enrichment-service/internal/common/logging"
	"enrichment-service/internal/enrichment"
)

// Cache is the TTL-bounded result store. Concurrent writers to the same key
// are expected to carry semantically identical successful results;
// last-write-wins at the backing store is the accepted outcome.
type Cache struct {
	store   cache.Store
	ttl     time.Duration
	enabled bool
	logger  logging.Logger
}

// New creates a result cache over the given backing store. When enabled is
// false every lookup misses and every write is a no-op.
func New(store cache.Store, ttl time.Duration, enabled bool) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		enabled: enabled,
		logger:  logging.GetGlobalLogger().WithFields(logging.String("component", "result_cache")),
	}
}

// Get returns the cached response for key, or false on a miss, an expired
// entry, a disabled cache, or any backing-store trouble.
func (c *Cache) Get(ctx context.Context, key string) (*enrichment.Response, bool) {
	if !c.enabled {
		return nil, false
	}

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			// Outage degrades to a direct provider call.
			c.logger.Warn("backing store read failed, treating as miss",
				logging.String("key", key),
				logging.Err(err))
		}
		return nil, false
	}

	var response enrichment.Response
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		c.logger.Warn("corrupt cache entry, treating as miss",
			logging.String("key", key),
			logging.Err(err))
		// Best effort: drop the entry so the next write replaces it.
		_ = c.store.Delete(ctx, key)
		return nil, false
	}

	return &response, true
}

// Put stores a successful response under key. Failure responses are never
// cached. Write errors are logged and swallowed; the caller already has its
// result.
func (c *Cache) Put(ctx context.Context, key string, response *enrichment.Response) {
	if !c.enabled || response == nil || !response.Success {
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		c.logger.Warn("failed to serialize response for caching",
			logging.String("key", key),
			logging.Err(err))
		return
	}

	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("backing store write failed",
			logging.String("key", key),
			logging.Err(err))
	}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Enabled reports whether caching is active.
func (c *Cache) Enabled() bool {
	return c.enabled
}
