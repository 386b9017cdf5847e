package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-authgate/identitygate/internal/cache"
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/metrics"
	"github.com/go-authgate/identitygate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// createHTTPServer creates the HTTP server instance. WriteTimeout stays zero
// so live channel streams are not cut off.
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server, logger *zap.Logger) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			logger.Info("server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("failed to start server", zap.Error(err))
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob closes live channels first so their handlers return,
// drains in-flight requests, then flushes audit entries and closes the
// database. Shutdown jobs run concurrently, so this order is kept in one job.
func addServerShutdownJob(m *graceful.Manager, app *Application) {
	m.AddShutdownJob(func() error {
		app.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), app.Config.ServerShutdownTimeout)
		defer cancel()

		_ = app.LiveChannels.CloseAll(ctx)
		err := app.Server.Shutdown(ctx)
		if err != nil {
			app.Logger.Error("server forced to shutdown", zap.Error(err))
		} else {
			app.Logger.Info("server exited")
		}

		closeStorage(app)
		return err
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client, logger *zap.Logger) {
	if redisClient == nil {
		return
	}
	m.AddShutdownJob(func() error {
		if err := redisClient.Close(); err != nil {
			logger.Error("error closing redis client", zap.Error(err))
			return err
		}
		logger.Info("redis connection closed")
		return nil
	})
}

// closeStorage flushes queued audit entries and then closes the database
func closeStorage(app *Application) {
	auditCtx, cancel := context.WithTimeout(context.Background(), app.Config.AuditShutdownTimeout)
	defer cancel()
	if err := app.Services.audit.Shutdown(auditCtx); err != nil {
		app.Logger.Error("error shutting down audit service", zap.Error(err))
	}

	dbCtx, cancelDB := context.WithTimeout(context.Background(), app.Config.DBCloseTimeout)
	defer cancelDB()
	if err := app.DB.Close(dbCtx); err != nil {
		app.Logger.Error("error closing database", zap.Error(err))
		return
	}
	app.Logger.Info("database closed")
}

// addCacheShutdownJob closes the user and metrics caches
func addCacheShutdownJob(m *graceful.Manager, app *Application) {
	m.AddShutdownJob(func() error {
		closeCaches(app.UserCache, app.MetricsCache, app.Logger)
		return nil
	})
}

func closeCaches(userCache, metricsCache interface{ Close() error }, logger *zap.Logger) {
	for name, c := range map[string]interface{ Close() error }{
		"user":    userCache,
		"metrics": metricsCache,
	} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			logger.Error("error closing cache", zap.String("cache", name), zap.Error(err))
		}
	}
}

// runCleanup removes audit and hook log rows past their retention
func runCleanup(ctx context.Context, app *Application) {
	cfg := app.Config
	if cfg.AuditLogRetention > 0 {
		if deleted, err := app.Services.audit.CleanupOldLogs(ctx, cfg.AuditLogRetention); err != nil {
			app.Logger.Error("failed to clean up audit logs", zap.Error(err))
		} else if deleted > 0 {
			app.Logger.Info("cleaned up audit logs", zap.Int64("deleted", deleted))
		}
	}
	if cfg.HookLogRetention > 0 {
		if deleted, err := app.Services.dispatcher.CleanupOldLogs(ctx, cfg.HookLogRetention); err != nil {
			app.Logger.Error("failed to clean up hook logs", zap.Error(err))
		} else if deleted > 0 {
			app.Logger.Info("cleaned up hook logs", zap.Int64("deleted", deleted))
		}
	}
}

// addLogCleanupJob runs the retention cleanup at startup and then every interval
func addLogCleanupJob(m *graceful.Manager, app *Application) {
	cfg := app.Config
	if cfg.AuditLogRetention <= 0 && cfg.HookLogRetention <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.LogCleanupInterval)
		defer ticker.Stop()

		runCleanup(ctx, app)
		for {
			select {
			case <-ticker.C:
				runCleanup(ctx, app)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addMetricsGaugeUpdateJob refreshes the user and service gauges periodically
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder metrics.Recorder,
	metricsCache cache.Cache[int64],
) {
	if !cfg.MetricsEnabled || cfg.MetricsGaugeUpdateInterval <= 0 || metricsCache == nil {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.MetricsGaugeUpdateInterval)
		defer ticker.Stop()

		wrapper := metrics.NewCacheWrapper(db, metricsCache)
		wrapper.UpdateGauges(ctx, recorder, cfg.MetricsGaugeUpdateInterval)
		for {
			select {
			case <-ticker.C:
				wrapper.UpdateGauges(ctx, recorder, cfg.MetricsGaugeUpdateInterval)
			case <-ctx.Done():
				return nil
			}
		}
	})
}
