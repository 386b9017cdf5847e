package bootstrap

import (
	"net/http"

	_ "github.com/go-authgate/identitygate/api" // swagger docs
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/handlers"
	"github.com/go-authgate/identitygate/internal/metrics"
	"github.com/go-authgate/identitygate/internal/middleware"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const sessionCookieName = "oauth_session"

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	svc serviceSet,
	recorder metrics.Recorder,
	rateLimiters rateLimitMiddlewares,
	logger *zap.Logger,
) *gin.Engine {
	setupGinMode(cfg, logger)
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Use(gin.Recovery())
	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(util.IPMiddleware())
	setupSessionMiddleware(r, cfg)

	r.GET("/health", handlers.Health(db))
	setupMetricsEndpoint(r, cfg, logger)
	setupSwaggerEndpoint(r, cfg, logger)

	setupAllRoutes(r, h, svc, rateLimiters)
	return r
}

// setupSessionMiddleware configures the cookie session carrying OAuth state.
// Lax so the cookie survives the provider's redirect back.
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionCookieName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	switch {
	case !cfg.MetricsEnabled:
		logger.Info("prometheus metrics endpoint disabled")
	case cfg.MetricsToken != "":
		logger.Info("prometheus metrics enabled at /metrics with bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		logger.Warn("prometheus metrics enabled at /metrics without authentication")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupSwaggerEndpoint serves the generated API docs and Swagger UI
func setupSwaggerEndpoint(r *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	if !cfg.SwaggerEnabled {
		return
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logger.Info("swagger UI enabled at /swagger/index.html")
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	h handlerSet,
	svc serviceSet,
	rateLimiters rateLimitMiddlewares,
) {
	requireAuth := middleware.RequireAuth(svc.session, svc.identity)
	auditAccess := middleware.AuditAccess(svc.audit)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", rateLimiters.login, h.auth.Login)
		authGroup.POST("/signup", rateLimiters.signup, h.auth.Signup)
		authGroup.POST("/refresh", rateLimiters.refresh, h.auth.Refresh)
		authGroup.POST("/logout", h.auth.Logout)
		authGroup.GET("/me", requireAuth, auditAccess, h.auth.Me)

		authGroup.GET("/success", h.oauth.Success)
		authGroup.GET("/:provider", h.oauth.LoginWithProvider)
		authGroup.GET("/:provider/callback", h.oauth.OAuthCallback)
	}

	verify := r.Group("/verify")
	{
		verify.POST("/access-token", h.verify.VerifyAccess)
		verify.POST("/refresh-token", h.verify.VerifyRefresh)
	}

	keys := r.Group("/keys/:service")
	{
		keys.GET("/jwks.json", h.keys.JWKS)
		keys.POST("/generate",
			requireAuth, middleware.RequirePermission(models.PermManageKeys), auditAccess,
			h.keys.Generate,
		)
		keys.GET("/:keyType",
			requireAuth, middleware.RequirePermission(models.PermReadKeys), auditAccess,
			h.keys.PublicKey,
		)
	}

	users := r.Group("/users")
	users.Use(requireAuth, auditAccess)
	{
		users.GET("", middleware.RequirePermission(models.PermReadUser), h.users.List)
		users.GET("/:id", middleware.RequirePermission(models.PermReadUser), h.users.Get)
		users.POST("", middleware.RequirePermission(models.PermManageUser), h.users.Create)
	}

	audit := r.Group("/audit")
	audit.Use(requireAuth, middleware.RequirePermission(models.PermReadAudit), auditAccess)
	{
		audit.GET("/logs", h.audit.ListAuditLogs)
		audit.GET("/logs/export", h.audit.ExportAuditLogs)
	}

	tenants := r.Group("/services")
	tenants.Use(requireAuth, middleware.RequirePermission(models.PermManageServices), auditAccess)
	{
		tenants.POST("", h.services.Create)
		tenants.DELETE("/:name", h.services.Delete)
	}

	serviceBearer := middleware.RequireServiceBearer(svc.registry)
	r.GET("/live", serviceBearer, h.live.Stream)
	r.GET("/services/hook-logs", serviceBearer, h.live.HookLogs)
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config, logger *zap.Logger) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}
	logger.Info("gin mode", zap.String("mode", gin.Mode()))
}
