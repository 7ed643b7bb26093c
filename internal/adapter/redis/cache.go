// Package redis implements the cache port on Redis as an alternative L2 cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache stores values under a key prefix in Redis.
type Cache struct {
	rdb    *goredis.Client
	prefix string
}

// New wraps an existing client.
func New(rdb *goredis.Client, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix}
}

// Connect parses a redis:// URL, pings the server and returns a cache.
func Connect(ctx context.Context, url, prefix string) (*Cache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, prefix), nil
}

// Get retrieves a value.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set stores a value; ttl <= 0 keeps it until evicted.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
