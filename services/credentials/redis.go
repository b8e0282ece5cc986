package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps entries in Redis and relies on key expiry for TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient connects and pings so a bad address fails at startup.
func NewRedisClient(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (r *RedisStore) SetWithTTL(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) error {
	if err := checkEntry(key, ttl); err != nil {
		return err
	}
	if err := r.client.Set(ctx, fullKey(r.prefix, ns, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, ns Namespace, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, fullKey(r.prefix, ns, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (r *RedisStore) Exists(ctx context.Context, ns Namespace, key string) (bool, error) {
	n, err := r.client.Exists(ctx, fullKey(r.prefix, ns, key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := r.client.Del(ctx, fullKey(r.prefix, ns, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) SetIfAbsent(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) (bool, error) {
	if err := checkEntry(key, ttl); err != nil {
		return false, err
	}
	stored, err := r.client.SetNX(ctx, fullKey(r.prefix, ns, key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return stored, nil
}
