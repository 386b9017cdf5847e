package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/identitygate/internal/core"

	"github.com/redis/rueidis"
)

var _ core.Cache[struct{}] = (*RueidisCache[struct{}])(nil)

// RueidisCache keeps JSON values in Redis under keyPrefix, shared by every
// gateway instance. Server-assisted client caching is off; see
// RueidisAsideCache for that.
type RueidisCache[T any] struct {
	client    rueidis.Client
	keyPrefix string
}

// NewRueidisCache dials addr and pings it within ctx.
func NewRueidisCache[T any](
	ctx context.Context,
	addr, password string,
	db int,
	keyPrefix string,
) (*RueidisCache[T], error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		SelectDB:     db,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	c := &RueidisCache[T]{client: client, keyPrefix: keyPrefix}
	if err := c.Health(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

func (r *RueidisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	raw, err := r.client.Do(ctx, r.client.B().Get().Key(r.keyPrefix+key).Build()).ToString()
	switch {
	case rueidis.IsRedisNil(err):
		return zero, ErrCacheMiss
	case err != nil:
		return zero, unavailable(err)
	}
	return decode[T](raw)
}

func (r *RueidisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}
	cmd := r.client.B().Set().Key(r.keyPrefix + key).Value(raw).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RueidisCache[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(r.keyPrefix+key).Build()).Error(); err != nil {
		return unavailable(err)
	}
	return nil
}

// GetWithFetch does not lock across instances, so two instances missing at
// once both hit the store.
func (r *RueidisCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetch core.FetchFunc[T],
) (T, error) {
	return readThrough[T](ctx, r, key, ttl, fetch)
}

func (r *RueidisCache[T]) Health(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RueidisCache[T]) Close() error {
	r.client.Close()
	return nil
}
