package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/garuda/ports"
	"github.com/redis/go-redis/v9"
)

// Redis is a Redis implementation of the Cache interface, for deployments
// where multiple validator instances share memoized timestamps and
// impersonation decisions.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a cache on top of an existing Redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
		prefix: "garuda:cache:",
	}
}

// NewRedisFromURL connects to Redis and verifies the connection.
func NewRedisFromURL(ctx context.Context, redisURL string) (*Redis, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return NewRedis(client), nil
}

// GetValue returns the cached value for key.
func (r *Redis) GetValue(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	return value, true, nil
}

// SetValue stores value under key for the given TTL.
func (r *Redis) SetValue(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ ports.Cache = (*Redis)(nil)
