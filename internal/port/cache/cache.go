// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the port interface for key-value caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key derives a bounded cache key from arbitrary text under a namespace.
func Key(namespace, text string) string {
	sum := sha256.Sum256([]byte(text))
	return namespace + "." + hex.EncodeToString(sum[:])
}
