package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/identitygate/internal/core"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidisaside"
)

var _ core.Cache[struct{}] = (*RueidisAsideCache[struct{}])(nil)

// defaultClientCacheMB is the client-side cache per connection when unset
const defaultClientCacheMB = 32

// RueidisAsideCache layers rueidisaside over Redis. Reads are served from a
// client-side copy that Redis invalidates over RESP3, and a miss takes a
// per-key Redis lock so only one gateway instance loads a user at a time.
type RueidisAsideCache[T any] struct {
	client    rueidisaside.CacheAsideClient
	keyPrefix string
	clientTTL time.Duration
}

// NewRueidisAsideCache dials addr. clientTTL bounds how long a local copy may
// live; sizePerConnMB sizes the client-side cache of each connection.
func NewRueidisAsideCache[T any](
	ctx context.Context,
	addr, password string,
	db int,
	keyPrefix string,
	clientTTL time.Duration,
	sizePerConnMB int,
) (*RueidisAsideCache[T], error) {
	if sizePerConnMB <= 0 {
		sizePerConnMB = defaultClientCacheMB
	}

	client, err := rueidisaside.NewClient(rueidisaside.ClientOption{
		ClientOption: rueidis.ClientOption{
			InitAddress:       []string{addr},
			Password:          password,
			SelectDB:          db,
			CacheSizeEachConn: sizePerConnMB << 20,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rueidisaside client: %w", err)
	}

	c := &RueidisAsideCache[T]{client: client, keyPrefix: keyPrefix, clientTTL: clientTTL}
	if err := c.Health(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// Get never populates: the loader reports a miss and rueidisaside stores nothing.
func (r *RueidisAsideCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	raw, err := r.client.Get(ctx, r.clientTTL, r.keyPrefix+key,
		func(context.Context, string) (string, error) { return "", ErrCacheMiss })
	switch {
	case errors.Is(err, ErrCacheMiss):
		return zero, ErrCacheMiss
	case err != nil:
		return zero, unavailable(err)
	case raw == "":
		return zero, ErrCacheMiss
	}
	return decode[T](raw)
}

func (r *RueidisAsideCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetch core.FetchFunc[T],
) (T, error) {
	raw, err := r.client.Get(ctx, ttl, r.keyPrefix+key,
		func(ctx context.Context, _ string) (string, error) {
			value, err := fetch(ctx, key)
			if err != nil {
				return "", err
			}
			return encode(value)
		})
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}

func (r *RueidisAsideCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}
	c := r.client.Client()
	if err := c.Do(ctx, c.B().Set().Key(r.keyPrefix+key).Value(raw).Ex(ttl).Build()).Error(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete removes the key; Redis then invalidates every client-side copy.
func (r *RueidisAsideCache[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RueidisAsideCache[T]) Health(ctx context.Context) error {
	c := r.client.Client()
	if err := c.Do(ctx, c.B().Ping().Build()).Error(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RueidisAsideCache[T]) Close() error {
	r.client.Close()
	return nil
}
