package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/share-links/internal/share"
)

// RedisStore is a Redis implementation of share.ConditionalStore.
// Keys expire through Redis' own TTL handling.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed link store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "share:",
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	url, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", share.ErrNotFound
		}

		return "", fmt.Errorf("redis get: %w: %w", share.ErrStoreUnavailable, err)
	}

	return url, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w: %w", share.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w: %w", share.ErrStoreUnavailable, err)
	}

	return ok, nil
}

// Ping checks Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ share.ConditionalStore = (*RedisStore)(nil)
