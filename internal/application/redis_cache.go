package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisResultCache shares computed result sets across replicas. Cache
// failures are treated as misses so Redis downtime never breaks a search.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisResultCache creates the cache. A non-positive TTL falls back to
// 30 seconds.
func NewRedisResultCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisResultCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisResultCache{
		client: client,
		ttl:    ttl,
		prefix: "availability:search:",
		logger: defaultLogger(logger),
	}
}

// Get loads and decodes the cached result set for the key.
func (c *RedisResultCache) Get(ctx context.Context, key string) ([]UnitAvailability, bool) {
	payload, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("result cache read failed", "error", err)
		}
		return nil, false
	}
	var results []UnitAvailability
	if err := json.Unmarshal(payload, &results); err != nil {
		c.logger.Warn("result cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return results, true
}

// Store encodes and saves the result set under the key with the cache TTL.
func (c *RedisResultCache) Store(ctx context.Context, key string, results []UnitAvailability) {
	payload, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("result cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("result cache write failed", "key", key, "error", err)
	}
}
