// Package storage holds the optional side stores: a Redis cache of computed
// analytics and an S3 archive of uploaded export zips. Both degrade to
// no-ops when unconfigured so the core pipeline never depends on them.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "analytics:result:"

// ErrCacheMiss is returned when no cached result exists for a dataset.
var ErrCacheMiss = errors.New("cache miss")

// ResultCache caches serialized analysis results keyed by dataset id.
// Entries are invalidated whenever the dataset changes (new upload,
// attached details, deletion), so a hit is always consistent with disk.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache connects to Redis and verifies the connection.
func NewResultCache(ctx context.Context, addr, password string, ttl time.Duration) (*ResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &ResultCache{client: client, ttl: ttl}, nil
}

// Get unmarshals the cached result for a dataset into dest.
func (c *ResultCache) Get(ctx context.Context, datasetID string, dest any) error {
	data, err := c.client.Get(ctx, resultKeyPrefix+datasetID).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("get cached result: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode cached result: %w", err)
	}
	return nil
}

// Set stores a result for a dataset with the cache TTL.
func (c *ResultCache) Set(ctx context.Context, datasetID string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(ctx, resultKeyPrefix+datasetID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache result: %w", err)
	}
	return nil
}

// Invalidate drops the cached result for a dataset. Missing keys are fine.
func (c *ResultCache) Invalidate(ctx context.Context, datasetID string) error {
	if err := c.client.Del(ctx, resultKeyPrefix+datasetID).Err(); err != nil {
		return fmt.Errorf("invalidate cached result: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *ResultCache) Close() error {
	return c.client.Close()
}
