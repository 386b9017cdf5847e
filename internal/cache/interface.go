package cache

import (
	"context"
	"time"

	"github.com/go-authgate/identitygate/internal/core"
)

// Cache is an alias for core.Cache so callers can depend on the cache package alone.
type Cache[T any] = core.Cache[T]

// readThrough is GetWithFetch for backends that cannot lock across
// instances. A backend read error is treated as a miss so a Redis outage
// degrades to direct store reads instead of failing logins.
func readThrough[T any](
	ctx context.Context,
	c core.Cache[T],
	key string,
	ttl time.Duration,
	fetch core.FetchFunc[T],
) (T, error) {
	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err := fetch(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = c.Set(ctx, key, value, ttl)
	return value, nil
}
