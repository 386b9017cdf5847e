package bootstrap

import (
	"fmt"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/middleware"
	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitMiddlewares holds the limiter of each credential endpoint
type rateLimitMiddlewares struct {
	login   gin.HandlerFunc
	signup  gin.HandlerFunc
	refresh gin.HandlerFunc
}

func noOpMiddleware(c *gin.Context) { c.Next() }

// setupRateLimiting returns pass-through middlewares when rate limiting is disabled
func setupRateLimiting(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
	logger *zap.Logger,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		logger.Info("rate limiting disabled")
		return rateLimitMiddlewares{
			login:   noOpMiddleware,
			signup:  noOpMiddleware,
			refresh: noOpMiddleware,
		}, nil
	}

	build := func(endpoint string, rpm int) (gin.HandlerFunc, error) {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: rpm,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			StoreType:         cfg.RateLimitStore,
			RedisClient:       redisClient,
			AuditService:      auditService,
			Endpoint:          endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s rate limiter: %w", endpoint, err)
		}
		return limiter, nil
	}

	var (
		limiters rateLimitMiddlewares
		err      error
	)
	if limiters.login, err = build("/auth/login", cfg.LoginRateLimit); err != nil {
		return limiters, err
	}
	if limiters.signup, err = build("/auth/signup", cfg.SignupRateLimit); err != nil {
		return limiters, err
	}
	if limiters.refresh, err = build("/auth/refresh", cfg.RefreshRateLimit); err != nil {
		return limiters, err
	}

	logger.Info("rate limiting enabled",
		zap.String("store", cfg.RateLimitStore),
		zap.Int("login_rpm", cfg.LoginRateLimit),
		zap.Int("signup_rpm", cfg.SignupRateLimit),
		zap.Int("refresh_rpm", cfg.RefreshRateLimit),
	)
	return limiters, nil
}
