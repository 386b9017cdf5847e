package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Default provider API endpoints
const (
	discordUserURL   = "https://discord.com/api/users/@me"
	discordAvatarURL = "https://cdn.discordapp.com/avatars/%s/%s.png"
	githubUserURL    = "https://api.github.com/user"
	githubEmailsURL  = "https://api.github.com/user/emails"
	googleUserURL    = "https://openidconnect.googleapis.com/v1/userinfo"
)

var discordEndpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/api/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// OAuthProviderConfig contains configuration for an OAuth provider
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuthProvider handles OAuth authentication for one provider and maps the
// provider's user document onto a Profile.
type OAuthProvider struct {
	config      *oauth2.Config
	provider    string // "discord", "github", "google"
	userInfoURL string
	emailsURL   string // GitHub only
	httpClient  *http.Client
}

// ProviderOption customizes an OAuthProvider.
type ProviderOption func(*OAuthProvider)

// WithHTTPClient sets the client used for the code exchange and API calls.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *OAuthProvider) { p.httpClient = c }
}

// WithEndpoint overrides the authorization and token URLs.
func WithEndpoint(ep oauth2.Endpoint) ProviderOption {
	return func(p *OAuthProvider) { p.config.Endpoint = ep }
}

// WithUserInfoURL overrides the profile endpoint.
func WithUserInfoURL(u string) ProviderOption {
	return func(p *OAuthProvider) { p.userInfoURL = u }
}

// WithEmailsURL overrides the GitHub emails endpoint.
func WithEmailsURL(u string) ProviderOption {
	return func(p *OAuthProvider) { p.emailsURL = u }
}

func newProvider(
	name string,
	cfg OAuthProviderConfig,
	endpoint oauth2.Endpoint,
	userInfoURL string,
	opts []ProviderOption,
) *OAuthProvider {
	p := &OAuthProvider{
		provider:    name,
		userInfoURL: userInfoURL,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDiscordProvider creates a Discord OAuth provider
func NewDiscordProvider(cfg OAuthProviderConfig, opts ...ProviderOption) *OAuthProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"identify", "email"}
	}
	return newProvider(ProviderDiscord, cfg, discordEndpoint, discordUserURL, opts)
}

// NewGitHubProvider creates a GitHub OAuth provider
func NewGitHubProvider(cfg OAuthProviderConfig, opts ...ProviderOption) *OAuthProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"user:email"}
	}
	p := newProvider(ProviderGitHub, cfg, github.Endpoint, githubUserURL, nil)
	p.emailsURL = githubEmailsURL
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewGoogleProvider creates a Google OAuth provider
func NewGoogleProvider(cfg OAuthProviderConfig, opts ...ProviderOption) *OAuthProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "profile", "email"}
	}
	return newProvider(ProviderGoogle, cfg, google.Endpoint, googleUserURL, opts)
}

// GetAuthURL returns the OAuth authorization URL
func (p *OAuthProvider) GetAuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode exchanges authorization code for access token
func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(p.clientContext(ctx), code)
}

// GetUserInfo retrieves the normalized profile for the token's owner
func (p *OAuthProvider) GetUserInfo(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	ctx = p.clientContext(ctx)
	client := p.config.Client(ctx, token)

	var (
		profile *Profile
		err     error
	)
	switch p.provider {
	case ProviderDiscord:
		profile, err = p.getDiscordUserInfo(ctx, client)
	case ProviderGitHub:
		profile, err = p.getGitHubUserInfo(ctx, client)
	case ProviderGoogle:
		profile, err = p.getGoogleUserInfo(ctx, client)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p.provider)
	}
	if err != nil {
		return nil, err
	}

	profile.Provider = p.provider
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingEmail, p.GetDisplayName())
	}
	return profile, nil
}

// GetProvider returns the provider name
func (p *OAuthProvider) GetProvider() string {
	return p.provider
}

// GetDisplayName returns the human-readable provider name
func (p *OAuthProvider) GetDisplayName() string {
	switch p.provider {
	case ProviderDiscord:
		return "Discord"
	case ProviderGitHub:
		return "GitHub"
	case ProviderGoogle:
		return "Google"
	default:
		if p.provider == "" {
			return ""
		}
		return strings.ToUpper(p.provider[:1]) + p.provider[1:]
	}
}

func (p *OAuthProvider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Discord user document
type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar"`
}

func (p *OAuthProvider) getDiscordUserInfo(
	ctx context.Context,
	client *http.Client,
) (*Profile, error) {
	var user discordUser
	if err := getJSON(ctx, client, p.userInfoURL, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: discord user has no id", ErrProviderResponse)
	}

	profile := &Profile{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
	if user.Avatar != "" {
		profile.AvatarURL = fmt.Sprintf(discordAvatarURL, user.ID, user.Avatar)
	}
	return profile, nil
}

// GitHub user info structures
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *OAuthProvider) getGitHubUserInfo(
	ctx context.Context,
	client *http.Client,
) (*Profile, error) {
	var user githubUser
	if err := getJSON(ctx, client, p.userInfoURL, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: github user has no id", ErrProviderResponse)
	}

	// Private emails are only listed on the emails endpoint
	if user.Email == "" {
		email, err := p.getGitHubPrimaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}

	return &Profile{
		ID:        fmt.Sprintf("%d", user.ID),
		Username:  user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}, nil
}

// getGitHubPrimaryEmail returns the primary verified email, else the first verified one
func (p *OAuthProvider) getGitHubPrimaryEmail(
	ctx context.Context,
	client *http.Client,
) (string, error) {
	var emails []githubEmail
	if err := getJSON(ctx, client, p.emailsURL, &emails); err != nil {
		return "", err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}
	for _, email := range emails {
		if email.Verified {
			return email.Email, nil
		}
	}
	return "", fmt.Errorf("%w: no verified GitHub email", ErrMissingEmail)
}

// Google OpenID Connect userinfo document
type googleUser struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

func (p *OAuthProvider) getGoogleUserInfo(
	ctx context.Context,
	client *http.Client,
) (*Profile, error) {
	var user googleUser
	if err := getJSON(ctx, client, p.userInfoURL, &user); err != nil {
		return nil, err
	}
	if user.Sub == "" {
		return nil, fmt.Errorf("%w: google user has no subject", ErrProviderResponse)
	}

	// Google has no handle; the username is derived from the email later
	return &Profile{
		ID:        user.Sub,
		Email:     user.Email,
		AvatarURL: user.Picture,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s - %s", ErrProviderAPI, resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderResponse, err)
	}
	return nil
}
