package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionCache stores the current token string per session key with
// the token lifetime as TTL.
type RedisSessionCache struct {
	client    redis.Cmdable
	opTimeout time.Duration
}

// NewRedisSessionCache builds a cache on top of an existing client.
// opTimeout bounds each command on top of the caller's context; zero disables it.
func NewRedisSessionCache(client redis.Cmdable, opTimeout time.Duration) *RedisSessionCache {
	return &RedisSessionCache{client: client, opTimeout: opTimeout}
}

// Get returns the stored token and whether the key exists.
func (c *RedisSessionCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set unconditionally overwrites key.
func (c *RedisSessionCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *RedisSessionCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}
