package cache

import (
	"context"
	"errors"
	"time"

	"enrichment-service/internal/redis"
)

// RedisStore adapts the redis client to the Store contract.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, key)
}

func (s *RedisStore) Health() error {
	return s.client.Health()
}

var _ Store = (*RedisStore)(nil)
