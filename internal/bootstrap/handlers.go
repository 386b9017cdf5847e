package bootstrap

import (
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/handlers"
	"github.com/go-authgate/identitygate/internal/livechannel"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	oauth    *handlers.OAuthHandler
	auth     *handlers.AuthHandler
	keys     *handlers.KeyHandler
	verify   *handlers.VerifyHandler
	users    *handlers.UserHandler
	services *handlers.ServiceHandler
	live     *handlers.LiveHandler
	audit    *handlers.AuditHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	svc serviceSet,
	providers map[string]handlers.OAuthProvider,
	live *livechannel.Registry,
) handlerSet {
	cookies := handlers.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.IsProduction,
	}

	return handlerSet{
		oauth:    handlers.NewOAuthHandler(providers, svc.session, cfg.AllowedRedirectHosts, cookies),
		auth:     handlers.NewAuthHandler(svc.session, cookies),
		keys:     handlers.NewKeyHandler(svc.keys),
		verify:   handlers.NewVerifyHandler(svc.session),
		users:    handlers.NewUserHandler(svc.identity, svc.session),
		services: handlers.NewServiceHandler(svc.registry, svc.keys, svc.audit),
		live:     handlers.NewLiveHandler(live, svc.dispatcher, cfg.LiveChannelHeartbeat),
		audit:    handlers.NewAuditHandler(svc.audit),
	}
}
