// Package rediscache caches completed backtest runs in Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"equity-momentum-lab/internal/domain"
)

// DefaultKeyPrefix namespaces run keys.
const DefaultKeyPrefix = "momentum:run:"

// DefaultTTL is used when a cache is created with a non-positive TTL.
const DefaultTTL = 15 * time.Minute

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ResultCache stores BacktestResults as JSON under prefix+run_id.
type ResultCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewClient opens a Redis client and checks the connection.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

// NewResultCache wraps client. A non-positive ttl selects DefaultTTL.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{client: client, prefix: DefaultKeyPrefix, ttl: ttl}
}

// Key returns the cache key of runID.
func (c *ResultCache) Key(runID string) string {
	return c.prefix + runID
}

// Get returns the cached run. found is false on a cache miss.
func (c *ResultCache) Get(ctx context.Context, runID string) (*domain.BacktestResult, bool, error) {
	val, err := c.client.Get(ctx, c.Key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var r domain.BacktestResult
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, false, fmt.Errorf("decode cached run %s: %w", runID, err)
	}
	return &r, true, nil
}

// Set stores r with the cache TTL.
func (c *ResultCache) Set(ctx context.Context, r *domain.BacktestResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", r.RunID, err)
	}
	if err := c.client.Set(ctx, c.Key(r.RunID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete evicts runID.
func (c *ResultCache) Delete(ctx context.Context, runID string) error {
	if err := c.client.Del(ctx, c.Key(runID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
