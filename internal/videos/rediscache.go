package videos

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache shared between gateway instances. Redis expires keys
// itself, so a stored entry is never returned past its TTL. Redis failures are
// logged and treated as misses.
type RedisCache[T any] struct {
	client redis.Cmdable
	prefix string
	logger *slog.Logger
}

// NewRedisCache namespaces every key with prefix.
func NewRedisCache[T any](client redis.Cmdable, prefix string, logger *slog.Logger) *RedisCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "pawpals:videos:"
	}
	return &RedisCache[T]{client: client, prefix: prefix, logger: logger}
}

// Get implements Cache.
func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis cache get failed", "key", key, "error", err)
		}
		return zero, false
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn("redis cache entry undecodable", "key", key, "error", err)
		return zero, false
	}
	return value, true
}

// Set implements Cache.
func (c *RedisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", "key", key, "error", err)
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
