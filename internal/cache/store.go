// Package cache provides the backing key/value stores used by the result
// cache. The result cache only needs a minimal get/put contract; physical
// storage is delegated here so a Redis outage degrades to cache misses
// instead of failing requests.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is the minimal contract a backing key/value store must satisfy.
type Store interface {
	// Get returns the raw value for key, or ErrNotFound when absent.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value under key with the given TTL.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Health reports whether the store is reachable.
	Health() error
}
