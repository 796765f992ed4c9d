package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalStore is an in-process Store for single-instance deployments and tests.
type LocalStore struct {
	cache *gocache.Cache
}

// NewLocalStore creates an in-memory store. cleanupInterval controls how
// often expired entries are purged; expired entries are never returned
// regardless.
func NewLocalStore(defaultTTL, cleanupInterval time.Duration) *LocalStore {
	return &LocalStore{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (s *LocalStore) Get(ctx context.Context, key string) (string, error) {
	value, found := s.cache.Get(key)
	if !found {
		return "", ErrNotFound
	}
	str, ok := value.(string)
	if !ok {
		return "", ErrNotFound
	}
	return str, nil
}

func (s *LocalStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *LocalStore) Health() error {
	return nil
}

var _ Store = (*LocalStore)(nil)
