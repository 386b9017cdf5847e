package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "identitygate:ratelimit"

// Store backends, mirroring RATE_LIMIT_STORE.
const (
	RateLimitStoreMemory = config.RateLimitStoreMemory
	RateLimitStoreRedis  = config.RateLimitStoreRedis
)

// RateLimitConfig describes the limiter guarding one endpoint.
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	StoreType         string

	// Shared between replicas; closed by the caller
	RedisClient *redis.Client

	AuditService *services.AuditService
	// Endpoint scopes the counters, so limiters sharing a redis store keep separate budgets
	Endpoint string
}

// NewRateLimiter limits requests per client IP and endpoint.
func NewRateLimiter(cfg RateLimitConfig) (gin.HandlerFunc, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", cfg.RequestsPerMinute)
	}

	store, err := newLimiterStore(cfg)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(store, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(cfg.RequestsPerMinute),
	})

	return mgin.NewMiddleware(instance,
		mgin.WithKeyGetter(func(c *gin.Context) string {
			return cfg.Endpoint + "|" + c.ClientIP()
		}),
		mgin.WithLimitReachedHandler(limitReached(cfg)),
	), nil
}

// NewMemoryRateLimiter is a single-instance limiter with default cleanup.
func NewMemoryRateLimiter(requestsPerMinute int) (gin.HandlerFunc, error) {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		StoreType:         RateLimitStoreMemory,
	})
}

func newLimiterStore(cfg RateLimitConfig) (limiter.Store, error) {
	opts := limiter.StoreOptions{
		Prefix:          rateLimitPrefix,
		CleanUpInterval: cfg.CleanupInterval,
	}

	if cfg.StoreType == RateLimitStoreRedis {
		if cfg.RedisClient == nil {
			return nil, errors.New("redis rate limit store requires a redis client")
		}
		store, err := limiterRedis.NewStoreWithOptions(cfg.RedisClient, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
		return store, nil
	}

	if opts.CleanUpInterval <= 0 {
		opts.CleanUpInterval = limiter.DefaultCleanUpInterval
	}
	return memory.NewStoreWithOptions(opts), nil
}

func limitReached(cfg RateLimitConfig) mgin.LimitReachedHandler {
	return func(c *gin.Context) {
		if cfg.AuditService != nil {
			cfg.AuditService.Log(c.Request.Context(), services.AuditLogEntry{
				EventType:     models.EventRateLimitExceed,
				Severity:      models.SeverityWarning,
				ActorIP:       c.ClientIP(),
				UserAgent:     c.Request.UserAgent(),
				RequestPath:   c.Request.URL.Path,
				RequestMethod: c.Request.Method,
				Details: models.AuditDetails{
					"endpoint": cfg.Endpoint,
					"limit":    cfg.RequestsPerMinute,
				},
			})
		}
		abortWithError(c, http.StatusTooManyRequests,
			"Too many requests", "Rate limit exceeded. Please try again later.")
	}
}
