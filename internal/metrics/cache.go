package metrics

import (
	"context"
	"time"

	"github.com/go-authgate/identitygate/internal/cache"
	"github.com/go-authgate/identitygate/internal/core"

	"go.uber.org/zap"
)

// CacheWrapper provides a read-through cache for gauge data so that several
// instances sharing Redis do not all count the same tables each tick.
type CacheWrapper struct {
	store core.MetricsStore
	cache cache.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store core.MetricsStore, cache cache.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetUsersCount returns the number of registered users.
func (m *CacheWrapper) GetUsersCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.cache.GetWithFetch(ctx, "users:total", ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return m.store.CountUsers(ctx)
		})
}

// GetServicesCount returns the number of non-deleted services.
func (m *CacheWrapper) GetServicesCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.cache.GetWithFetch(ctx, "services:total", ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return m.store.CountServices(ctx)
		})
}

// UpdateGauges refreshes the registry gauges on rec. Count failures are
// recorded and logged; the other gauge is still updated.
func (m *CacheWrapper) UpdateGauges(ctx context.Context, rec Recorder, ttl time.Duration) {
	if users, err := m.GetUsersCount(ctx, ttl); err != nil {
		rec.RecordDatabaseQueryError("count_users")
		zap.L().Warn("failed to count users for metrics", zap.Error(err))
	} else {
		rec.SetUsersCount(users)
	}

	if services, err := m.GetServicesCount(ctx, ttl); err != nil {
		rec.RecordDatabaseQueryError("count_services")
		zap.L().Warn("failed to count services for metrics", zap.Error(err))
	} else {
		rec.SetServicesCount(services)
	}
}
