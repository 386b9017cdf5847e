package bootstrap

import (
	"fmt"

	"github.com/go-authgate/identitygate/internal/auth"
	"github.com/go-authgate/identitygate/internal/client"
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/handlers"

	"go.uber.org/zap"
)

// initializeOAuthProviders builds the enabled providers. A provider that is
// enabled without credentials is skipped with a warning.
func initializeOAuthProviders(
	cfg *config.Config,
	logger *zap.Logger,
) (map[string]handlers.OAuthProvider, error) {
	httpClient, err := client.CreateHTTPClient(client.HTTPOptions{
		Timeout:            cfg.OAuthTimeout,
		InsecureSkipVerify: cfg.OAuthInsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth http client: %w", err)
	}
	if cfg.OAuthInsecureSkipVerify {
		logger.Warn("OAuth TLS verification disabled (OAUTH_INSECURE_SKIP_VERIFY=true)")
	}

	providers := make(map[string]handlers.OAuthProvider)
	withClient := auth.WithHTTPClient(httpClient)

	switch {
	case !cfg.DiscordOAuthEnabled:
	case cfg.DiscordClientID == "" || cfg.DiscordClientSecret == "":
		logger.Warn("Discord OAuth enabled but CLIENT_ID or CLIENT_SECRET missing")
	default:
		providers[auth.ProviderDiscord] = auth.NewDiscordProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordOAuthRedirectURL,
			Scopes:       cfg.DiscordOAuthScopes,
		}, withClient)
	}

	switch {
	case !cfg.GitHubOAuthEnabled:
	case cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "":
		logger.Warn("GitHub OAuth enabled but CLIENT_ID or CLIENT_SECRET missing")
	default:
		providers[auth.ProviderGitHub] = auth.NewGitHubProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubOAuthRedirectURL,
			Scopes:       cfg.GitHubOAuthScopes,
		}, withClient)
	}

	switch {
	case !cfg.GoogleOAuthEnabled:
	case cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "":
		logger.Warn("Google OAuth enabled but CLIENT_ID or CLIENT_SECRET missing")
	default:
		providers[auth.ProviderGoogle] = auth.NewGoogleProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleOAuthRedirectURL,
			Scopes:       cfg.GoogleOAuthScopes,
		}, withClient)
	}

	logOAuthProvidersStatus(logger, providers)
	return providers, nil
}

func logOAuthProvidersStatus(logger *zap.Logger, providers map[string]handlers.OAuthProvider) {
	if len(providers) == 0 {
		logger.Info("no OAuth providers configured, only local login is available")
		return
	}
	for name, p := range providers {
		logger.Info("OAuth provider configured",
			zap.String("provider", name),
			zap.String("display_name", p.GetDisplayName()),
		)
	}
}
