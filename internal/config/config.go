package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment names
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// User cache type constants
const (
	UserCacheTypeMemory     = "memory"
	UserCacheTypeRedis      = "redis"
	UserCacheTypeRedisAside = "redis-aside"
)

// Service lookup modes
const (
	ServiceMatchExact    = "exact"
	ServiceMatchContains = "contains"
)

// Audit failure policies
const (
	AuditPolicyBestEffort = "best_effort"
	AuditPolicyFatal      = "fatal"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string // Token issuer (iss claim)
	Environment  string
	IsProduction bool

	// Session and cookie settings
	SessionSecret string
	SessionMaxAge int // seconds
	CookieDomain  string

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string
	SeedDemoData   bool

	// Key material
	KeyDir string

	// Token lifetimes
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	HookTokenExpiration    time.Duration
	OpenIDServiceName      string

	// Service registry
	ServiceMatchMode string

	// Webhook delivery
	WebhookTimeout            time.Duration
	WebhookMaxRetries         int
	WebhookRetryDelay         time.Duration
	WebhookMaxRetryDelay      time.Duration
	WebhookInsecureSkipVerify bool
	NotifyRequired            bool

	// Live channel
	LiveChannelBuffer      int
	LiveChannelSendTimeout time.Duration
	LiveChannelHeartbeat   time.Duration

	// Audit
	AuditFailurePolicy string
	AuditLogBufferSize int
	AuditLogRetention  time.Duration
	HookLogRetention   time.Duration
	LogCleanupInterval time.Duration

	// Discord OAuth
	DiscordOAuthEnabled     bool
	DiscordClientID         string
	DiscordClientSecret     string
	DiscordOAuthRedirectURL string
	DiscordOAuthScopes      []string

	// GitHub OAuth
	GitHubOAuthEnabled     bool
	GitHubClientID         string
	GitHubClientSecret     string
	GitHubOAuthRedirectURL string
	GitHubOAuthScopes      []string

	// Google OAuth
	GoogleOAuthEnabled     bool
	GoogleClientID         string
	GoogleClientSecret     string
	GoogleOAuthRedirectURL string
	GoogleOAuthScopes      []string

	// OAuth HTTP client settings
	OAuthTimeout            time.Duration
	OAuthInsecureSkipVerify bool

	// Hosts allowed as absolute redirect targets after login
	AllowedRedirectHosts []string

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string
	RateLimitCleanupInterval time.Duration
	LoginRateLimit           int // requests per minute
	SignupRateLimit          int
	RefreshRateLimit         int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Identity cache
	UserCacheType        string
	UserCacheTTL         time.Duration
	UserCacheClientTTL   time.Duration
	UserCacheSizePerConn int // MB

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateInterval time.Duration // 0 disables the gauge job

	// API docs
	SwaggerEnabled bool

	// Timeouts
	DBInitTimeout         time.Duration
	DBCloseTimeout        time.Duration
	RedisConnTimeout      time.Duration
	RedisCloseTimeout     time.Duration
	CacheInitTimeout      time.Duration
	CacheCloseTimeout     time.Duration
	ServerShutdownTimeout time.Duration
	AuditShutdownTimeout  time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "identitygate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	environment := getEnv("ENVIRONMENT", EnvironmentDevelopment)

	return &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		BaseURL:       getEnv("BASE_URL", "http://localhost:8080"),
		Environment:   environment,
		IsProduction:  environment == EnvironmentProduction,
		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 3600),
		CookieDomain:  getEnv("COOKIE_DOMAIN", ""),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		SeedDemoData:   getEnvBool("SEED_DEMO_DATA", false),

		KeyDir: getEnv("KEY_DIR", "keys"),

		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", 24*time.Hour),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 360*time.Hour), // 15 days
		HookTokenExpiration:    getEnvDuration("HOOK_TOKEN_EXPIRATION", 5*time.Minute),
		OpenIDServiceName:      getEnv("OPENID_SERVICE_NAME", "openid"),

		ServiceMatchMode: getEnv("SERVICE_MATCH_MODE", ServiceMatchContains),

		WebhookTimeout:            getEnvDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:         getEnvInt("WEBHOOK_MAX_RETRIES", 0),
		WebhookRetryDelay:         getEnvDuration("WEBHOOK_RETRY_DELAY", 500*time.Millisecond),
		WebhookMaxRetryDelay:      getEnvDuration("WEBHOOK_MAX_RETRY_DELAY", 2*time.Second),
		WebhookInsecureSkipVerify: getEnvBool("WEBHOOK_INSECURE_SKIP_VERIFY", false),
		NotifyRequired:            getEnvBool("NOTIFY_REQUIRED", false),

		LiveChannelBuffer:      getEnvInt("LIVE_CHANNEL_BUFFER", 16),
		LiveChannelSendTimeout: getEnvDuration("LIVE_CHANNEL_SEND_TIMEOUT", time.Second),
		LiveChannelHeartbeat:   getEnvDuration("LIVE_CHANNEL_HEARTBEAT", 25*time.Second),

		AuditFailurePolicy: getEnv("AUDIT_FAILURE_POLICY", AuditPolicyBestEffort),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
		HookLogRetention:   getEnvDuration("HOOK_LOG_RETENTION", 30*24*time.Hour),
		LogCleanupInterval: getEnvDuration("LOG_CLEANUP_INTERVAL", 24*time.Hour),

		DiscordOAuthEnabled:     getEnvBool("DISCORD_OAUTH_ENABLED", false),
		DiscordClientID:         getEnv("DISCORD_CLIENT_ID", ""),
		DiscordClientSecret:     getEnv("DISCORD_CLIENT_SECRET", ""),
		DiscordOAuthRedirectURL: getEnv("DISCORD_REDIRECT_URL", ""),
		DiscordOAuthScopes:      getEnvSlice("DISCORD_SCOPES", []string{"identify", "email"}),

		GitHubOAuthEnabled:     getEnvBool("GITHUB_OAUTH_ENABLED", false),
		GitHubClientID:         getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret:     getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubOAuthRedirectURL: getEnv("GITHUB_REDIRECT_URL", ""),
		GitHubOAuthScopes:      getEnvSlice("GITHUB_SCOPES", []string{"user:email"}),

		GoogleOAuthEnabled:     getEnvBool("GOOGLE_OAUTH_ENABLED", false),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleOAuthRedirectURL: getEnv("GOOGLE_REDIRECT_URL", ""),
		GoogleOAuthScopes: getEnvSlice(
			"GOOGLE_SCOPES",
			[]string{"openid", "profile", "email"},
		),

		OAuthTimeout:            getEnvDuration("OAUTH_TIMEOUT", 15*time.Second),
		OAuthInsecureSkipVerify: getEnvBool("OAUTH_INSECURE_SKIP_VERIFY", false),

		AllowedRedirectHosts: getEnvSlice("ALLOWED_REDIRECT_HOSTS", nil),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		LoginRateLimit:           getEnvInt("LOGIN_RATE_LIMIT", 10),
		SignupRateLimit:          getEnvInt("SIGNUP_RATE_LIMIT", 5),
		RefreshRateLimit:         getEnvInt("REFRESH_RATE_LIMIT", 30),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		UserCacheType:        getEnv("USER_CACHE_TYPE", UserCacheTypeMemory),
		UserCacheTTL:         getEnvDuration("USER_CACHE_TTL", 5*time.Minute),
		UserCacheClientTTL:   getEnvDuration("USER_CACHE_CLIENT_TTL", 30*time.Second),
		UserCacheSizePerConn: getEnvInt("USER_CACHE_SIZE_PER_CONN", 32),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", time.Minute),

		SwaggerEnabled: getEnvBool("SWAGGER_ENABLED", environment != EnvironmentProduction),

		DBInitTimeout:         getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		DBCloseTimeout:        getEnvDuration("DB_CLOSE_TIMEOUT", 5*time.Second),
		RedisConnTimeout:      getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),
		RedisCloseTimeout:     getEnvDuration("REDIS_CLOSE_TIMEOUT", 5*time.Second),
		CacheInitTimeout:      getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
		CacheCloseTimeout:     getEnvDuration("CACHE_CLOSE_TIMEOUT", 5*time.Second),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		AuditShutdownTimeout:  getEnvDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate checks enum-style settings and cross-field constraints.
func (c *Config) Validate() error {
	switch c.RateLimitStore {
	case RateLimitStoreMemory, RateLimitStoreRedis:
	default:
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis,
		)
	}

	switch c.UserCacheType {
	case UserCacheTypeMemory, UserCacheTypeRedis, UserCacheTypeRedisAside:
	default:
		return fmt.Errorf(
			"invalid USER_CACHE_TYPE value: %q (must be %q, %q or %q)",
			c.UserCacheType, UserCacheTypeMemory, UserCacheTypeRedis, UserCacheTypeRedisAside,
		)
	}
	if c.UserCacheTTL <= 0 {
		return errors.New("USER_CACHE_TTL must be a positive duration")
	}

	switch c.ServiceMatchMode {
	case ServiceMatchExact, ServiceMatchContains:
	default:
		return fmt.Errorf("invalid SERVICE_MATCH_MODE value: %q", c.ServiceMatchMode)
	}

	switch c.AuditFailurePolicy {
	case AuditPolicyBestEffort, AuditPolicyFatal:
	default:
		return fmt.Errorf("invalid AUDIT_FAILURE_POLICY value: %q", c.AuditFailurePolicy)
	}

	if c.KeyDir == "" {
		return errors.New("KEY_DIR must not be empty")
	}
	if c.AccessTokenExpiration <= 0 || c.RefreshTokenExpiration <= 0 {
		return errors.New("token expirations must be positive durations")
	}
	if c.AccessTokenExpiration >= c.RefreshTokenExpiration {
		return errors.New("ACCESS_TOKEN_EXPIRATION must be shorter than REFRESH_TOKEN_EXPIRATION")
	}
	if c.LogCleanupInterval <= 0 {
		return errors.New("LOG_CLEANUP_INTERVAL must be a positive duration")
	}
	if c.WebhookTimeout <= 0 {
		return errors.New("WEBHOOK_TIMEOUT must be a positive duration")
	}
	if c.IsProduction && c.SessionSecret == "session-secret-change-in-production" {
		return errors.New("SESSION_SECRET must be set in production")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
