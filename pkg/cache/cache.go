// Package cache provides byte-oriented caches for repository API responses.
//
// Caching is optional. With the default [NullCache] every record refresh
// issues its repository calls upstream; a [FileCache] or [RedisCache] lets
// bookmarks that share a repository reuse one response within the TTL.
package cache

import (
	"context"
	"time"
)

// TTLRepository is the default lifetime of a cached repository response.
const TTLRepository = time.Hour

// Cache stores opaque byte values under string keys.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
