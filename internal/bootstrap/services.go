package bootstrap

import (
	"fmt"

	"github.com/go-authgate/identitygate/internal/auth"
	"github.com/go-authgate/identitygate/internal/cache"
	"github.com/go-authgate/identitygate/internal/client"
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/livechannel"
	"github.com/go-authgate/identitygate/internal/metrics"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/services"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/token"

	"go.uber.org/zap"
)

// serviceSet holds the business layer
type serviceSet struct {
	audit      *services.AuditService
	identity   *services.IdentityService
	registry   *services.RegistryService
	dispatcher *services.Dispatcher
	session    *services.SessionService
	keys       *services.KeyService
}

// initializeLiveChannels creates the live channel registry and keeps the
// connected gauge in step with it.
func initializeLiveChannels(cfg *config.Config, m metrics.Recorder) *livechannel.Registry {
	return livechannel.NewRegistry(
		cfg.LiveChannelBuffer,
		cfg.LiveChannelSendTimeout,
		livechannel.WithOnChange(m.SetLiveChannelsConnected),
	)
}

// initializeServices wires the business services together
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	keys *keystore.KeyStore,
	userCache cache.Cache[models.User],
	live *livechannel.Registry,
	m metrics.Recorder,
	logger *zap.Logger,
) (serviceSet, error) {
	webhookClient, err := client.CreateRetryClient(
		client.HTTPOptions{
			Timeout:            cfg.WebhookTimeout,
			InsecureSkipVerify: cfg.WebhookInsecureSkipVerify,
		},
		client.RetryOptions{
			MaxRetries:    cfg.WebhookMaxRetries,
			RetryDelay:    cfg.WebhookRetryDelay,
			MaxRetryDelay: cfg.WebhookMaxRetryDelay,
			Logger:        logger.Named("webhook"),
		},
	)
	if err != nil {
		return serviceSet{}, fmt.Errorf("failed to create webhook client: %w", err)
	}
	if cfg.WebhookInsecureSkipVerify {
		logger.Warn("webhook TLS verification disabled (WEBHOOK_INSECURE_SKIP_VERIFY=true)")
	}

	audit := services.NewAuditService(db, cfg.AuditFailurePolicy, cfg.AuditLogBufferSize)
	identity := services.NewIdentityService(
		db,
		auth.NewBcryptHasher(0),
		userCache,
		cfg.UserCacheTTL,
	)
	registry := services.NewRegistryService(db, cfg.ServiceMatchMode)
	dispatcher := services.NewDispatcher(
		registry,
		db,
		live,
		webhookClient,
		m,
		cfg.HookTokenExpiration,
		logger,
	)
	session := services.NewSessionService(
		identity,
		registry,
		dispatcher,
		token.NewIssuer(cfg, keys),
		audit,
		m,
		cfg.NotifyRequired,
	)

	return serviceSet{
		audit:      audit,
		identity:   identity,
		registry:   registry,
		dispatcher: dispatcher,
		session:    session,
		keys:       services.NewKeyService(keys, audit, m),
	}, nil
}
