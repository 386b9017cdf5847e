package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-authgate/identitygate/internal/cache"
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/livechannel"
	"github.com/go-authgate/identitygate/internal/metrics"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/version"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Logger *zap.Logger

	// Core infrastructure
	DB              *store.Store
	Keys            *keystore.KeyStore
	MetricsRecorder metrics.Recorder
	UserCache       cache.Cache[models.User]
	MetricsCache    cache.Cache[int64]
	RedisClient     *redis.Client
	LiveChannels    *livechannel.Registry

	// Business layer
	Services serviceSet

	// HTTP
	Handlers handlerSet
	Router   *gin.Engine
	Server   *http.Server
}

// New builds every component without starting any job
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	app := &Application{Config: cfg, Logger: logger}

	// Phase 1: Validate configuration
	if err := validateConfiguration(cfg); err != nil {
		return nil, err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	// Phase 3: Initialize business layer
	if err := app.initializeBusinessLayer(); err != nil {
		app.Close(ctx)
		return nil, err
	}

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		app.Close(ctx)
		return nil, err
	}

	return app, nil
}

// Run initializes the application and serves until a termination signal
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting", version.Fields()...)

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()
	return nil
}

// initializeInfrastructure sets up the database, keys, metrics, caches and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	cfg := app.Config

	db, err := initializeDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	app.DB = db

	app.Keys = keystore.New(cfg.KeyDir)
	if err := ensureServiceKeys(ctx, app.DB, app.Keys, app.Logger); err != nil {
		return err
	}

	app.MetricsRecorder = initializeMetrics(cfg, app.Logger)
	app.LiveChannels = initializeLiveChannels(cfg, app.MetricsRecorder)

	// Remote backends connect independently
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := initializeUserCache(gctx, cfg, app.Logger)
		app.UserCache = c
		return err
	})
	g.Go(func() error {
		c, err := initializeMetricsCache(gctx, cfg, app.Logger)
		app.MetricsCache = c
		return err
	})
	g.Go(func() error {
		c, err := initializeRateLimitRedisClient(gctx, cfg, app.Logger)
		app.RedisClient = c
		return err
	})
	return g.Wait()
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() error {
	svc, err := initializeServices(
		app.Config,
		app.DB,
		app.Keys,
		app.UserCache,
		app.LiveChannels,
		app.MetricsRecorder,
		app.Logger,
	)
	if err != nil {
		return err
	}
	app.Services = svc
	return nil
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	providers, err := initializeOAuthProviders(app.Config, app.Logger)
	if err != nil {
		return err
	}

	rateLimiters, err := setupRateLimiting(
		app.Config,
		app.Services.audit,
		app.RedisClient,
		app.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to set up rate limiting: %w", err)
	}

	app.Handlers = initializeHandlers(app.Config, app.Services, providers, app.LiveChannels)
	app.Router = setupRouter(
		app.Config,
		app.DB,
		app.Handlers,
		app.Services,
		app.MetricsRecorder,
		rateLimiters,
		app.Logger,
	)
	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server, app.Logger)
	addServerShutdownJob(m, app)
	addRedisClientShutdownJob(m, app.RedisClient, app.Logger)
	addCacheShutdownJob(m, app)
	addLogCleanupJob(m, app)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache)

	<-m.Done()
}

// Close releases whatever New managed to open. Used on failed startup and in tests.
func (app *Application) Close(ctx context.Context) {
	if app.LiveChannels != nil {
		_ = app.LiveChannels.CloseAll(ctx)
	}
	if app.Services.audit != nil {
		if err := app.Services.audit.Shutdown(ctx); err != nil {
			app.Logger.Warn("error shutting down audit service", zap.Error(err))
		}
	}
	if app.RedisClient != nil {
		_ = app.RedisClient.Close()
	}
	closeCaches(app.UserCache, app.MetricsCache, app.Logger)
	if app.DB != nil {
		if err := app.DB.Close(ctx); err != nil {
			app.Logger.Warn("error closing database", zap.Error(err))
		}
	}
}
