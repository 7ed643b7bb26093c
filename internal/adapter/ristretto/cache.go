// Package ristretto implements the cache port using dgraph-io/ristretto as L1 in-process cache.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Config sizes the cache.
type Config struct {
	MaxCostBytes int64         // total size of cached values in bytes
	DefaultTTL   time.Duration // used when Set is called with ttl <= 0
}

// Cache wraps a ristretto cache as an in-process L1 cache.
type Cache struct {
	c          *ristretto.Cache[string, []byte]
	defaultTTL time.Duration
}

// New creates a ristretto-backed cache.
func New(cfg Config) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(cfg.MaxCostBytes/100*10, 1000), // ~10x expected items
		MaxCost:     cfg.MaxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, defaultTTL: cfg.DefaultTTL}, nil
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value and waits until it is visible to Get. Ristretto may
// still reject the item under cost pressure.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
