package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/identitygate/internal/cache"
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/metrics"
	"github.com/go-authgate/identitygate/internal/models"

	"go.uber.org/zap"
)

const (
	userCachePrefix    = "identitygate:users:"
	metricsCachePrefix = "identitygate:metrics:"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config, logger *zap.Logger) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		logger.Info("prometheus metrics initialized")
	} else {
		logger.Info("metrics disabled (using noop implementation)")
	}
	return recorder
}

// newCache builds a cache of the configured type under prefix
func newCache[T any](
	ctx context.Context,
	cfg *config.Config,
	prefix string,
) (cache.Cache[T], error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.UserCacheType {
	case config.UserCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[T](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			prefix,
			cfg.UserCacheClientTTL,
			cfg.UserCacheSizePerConn,
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.UserCacheTypeRedis:
		c, err := cache.NewRueidisCache[T](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			prefix,
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return cache.NewMemoryCache[T](), nil
	}
}

// initializeUserCache initializes the user cache (always enabled, defaults to memory)
func initializeUserCache(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (cache.Cache[models.User], error) {
	c, err := newCache[models.User](ctx, cfg, userCachePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s user cache: %w", cfg.UserCacheType, err)
	}
	logCacheType(logger, "user cache", cfg)
	return c, nil
}

// initializeMetricsCache initializes the gauge cache. It shares the user
// cache's backend so several instances count the tables once per interval.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (cache.Cache[int64], error) {
	if !cfg.MetricsEnabled || cfg.MetricsGaugeUpdateInterval <= 0 {
		return nil, nil
	}
	c, err := newCache[int64](ctx, cfg, metricsCachePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s metrics cache: %w", cfg.UserCacheType, err)
	}
	logCacheType(logger, "metrics cache", cfg)
	return c, nil
}

func logCacheType(logger *zap.Logger, name string, cfg *config.Config) {
	switch cfg.UserCacheType {
	case config.UserCacheTypeRedisAside:
		logger.Info(name+": redis-aside",
			zap.String("addr", cfg.RedisAddr),
			zap.Int("db", cfg.RedisDB),
			zap.Duration("client_ttl", cfg.UserCacheClientTTL),
			zap.Int("cache_size_per_conn_mb", cfg.UserCacheSizePerConn),
		)
	case config.UserCacheTypeRedis:
		logger.Info(name+": redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	default:
		logger.Info(name + ": memory (single instance only)")
	}
}
