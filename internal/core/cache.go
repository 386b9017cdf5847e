package core

import (
	"context"
	"time"
)

// FetchFunc loads the value for key from the source of truth on a cache miss.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// Cache[T] is a TTL key-value cache of T. The identity cache stores
// models.User under the user id; the gauge cache stores int64 counts.
type Cache[T any] interface {
	// Get returns ErrCacheMiss for absent or expired keys.
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// GetWithFetch is read-through: on a miss it calls fetch and stores the
	// result for ttl. A fetch error is returned as-is and nothing is stored.
	GetWithFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[T]) (T, error)

	Health(ctx context.Context) error
	Close() error
}
