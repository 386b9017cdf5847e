package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/identitygate/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisClientName tags gateway connections in CLIENT LIST
const redisClientName = "identitygate-ratelimit"

// initializeRateLimitRedisClient returns the go-redis client behind the
// limiter store, or nil when limits live in memory or are disabled.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (*redis.Client, error) {
	if !cfg.EnableRateLimit || cfg.RateLimitStore != config.RateLimitStoreRedis {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		ClientName:  redisClientName,
		DialTimeout: cfg.RedisConnTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.RedisAddr, err)
	}

	logger.Info("rate limit store: redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return client, nil
}
