package bootstrap

import (
	"errors"
	"fmt"

	"github.com/go-authgate/identitygate/internal/config"

	"go.uber.org/zap"
)

// NewLogger builds the process logger and installs it as the zap global.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// validateConfiguration runs the config checks plus those that span settings
func validateConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateDatabaseConfig(cfg); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	if err := validateRedisConfig(cfg); err != nil {
		return fmt.Errorf("invalid redis configuration: %w", err)
	}
	return nil
}

func validateDatabaseConfig(cfg *config.Config) error {
	switch cfg.DatabaseDriver {
	case "sqlite":
		if cfg.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is required")
		}
	case "postgres":
		if cfg.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is required when DATABASE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be: sqlite, postgres)", cfg.DatabaseDriver)
	}
	return nil
}

// validateRedisConfig requires REDIS_ADDR when any component is backed by Redis
func validateRedisConfig(cfg *config.Config) error {
	if cfg.RedisAddr != "" {
		return nil
	}
	if cfg.EnableRateLimit && cfg.RateLimitStore == config.RateLimitStoreRedis {
		return errors.New("REDIS_ADDR is required when RATE_LIMIT_STORE=redis")
	}
	if cfg.UserCacheType != config.UserCacheTypeMemory {
		return fmt.Errorf("REDIS_ADDR is required when USER_CACHE_TYPE=%s", cfg.UserCacheType)
	}
	return nil
}
