package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-authgate/identitygate/internal/auth"
	"github.com/go-authgate/identitygate/internal/services"
	"github.com/go-authgate/identitygate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Session keys carried across the OAuth round trip
const (
	sessionKeyState    = "oauth_state"
	sessionKeyUserID   = "user_id"
	sessionKeyService  = "service"
	sessionKeyRedirect = "redirect"
)

// OAuthProvider is the part of auth.OAuthProvider the login flow uses.
type OAuthProvider interface {
	GetAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	GetUserInfo(ctx context.Context, token *oauth2.Token) (*auth.Profile, error)
	GetDisplayName() string
}

var _ OAuthProvider = (*auth.OAuthProvider)(nil)

// oauthState travels through the provider as the state parameter. The nonce
// must match the one stored in the session.
type oauthState struct {
	Nonce    string `json:"n"`
	Service  string `json:"s"`
	Redirect string `json:"r"`
}

func (s oauthState) encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeOAuthState(v string) (oauthState, error) {
	var s oauthState
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return s, err
	}
	err = json.Unmarshal(raw, &s)
	return s, err
}

// OAuthHandler runs the provider login: initiate, callback and success.
type OAuthHandler struct {
	providers    map[string]OAuthProvider
	session      *services.SessionService
	allowedHosts []string
	cookies      CookieConfig
	logger       *zap.Logger
}

func NewOAuthHandler(
	providers map[string]OAuthProvider,
	session *services.SessionService,
	allowedHosts []string,
	cookies CookieConfig,
) *OAuthHandler {
	return &OAuthHandler{
		providers:    providers,
		session:      session,
		allowedHosts: allowedHosts,
		cookies:      cookies,
		logger:       zap.L().Named("oauth"),
	}
}

// LoginWithProvider godoc
//
//	@Summary		Start an OAuth login
//	@Description	Redirects to the provider. Both the target service and the post-login redirect are required.
//	@Tags			OAuth
//	@Param			provider	path		string	true	"Provider name"	Enums(google, github, facebook, discord)
//	@Param			service		query		string	true	"Target service"
//	@Param			redirect	query		string	true	"Post-login redirect"
//	@Success		307
//	@Failure		400			{object}	object{success=bool,message=string,error=string}
//	@Failure		404			{object}	object{success=bool,message=string,error=string}
//	@Router			/auth/{provider} [get]
func (h *OAuthHandler) LoginWithProvider(c *gin.Context) {
	provider, ok := h.providers[c.Param("provider")]
	if !ok {
		respondFailure(c, http.StatusNotFound, "Unsupported provider",
			"The requested OAuth provider is not configured.")
		return
	}

	service := c.Query("service")
	if service == "" {
		respondFailure(c, http.StatusBadRequest, "Service information missing",
			"Service information is required to authenticate")
		return
	}
	redirect := c.Query("redirect")
	if redirect == "" {
		respondFailure(c, http.StatusBadRequest, "Redirect missing",
			"A redirect URL is required to authenticate")
		return
	}
	if !util.IsRedirectAllowed(redirect, h.allowedHosts) {
		respondFailure(c, http.StatusBadRequest, "Invalid redirect",
			"The redirect URL is not allowed")
		return
	}

	nonce, err := util.RandomURLToken(24)
	if err != nil {
		respondError(c, err)
		return
	}
	state, err := oauthState{Nonce: nonce, Service: service, Redirect: redirect}.encode()
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionKeyState, nonce)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, provider.GetAuthURL(state))
}

// OAuthCallback godoc
//
//	@Summary		OAuth callback
//	@Description	Exchanges the code, resolves the identity, grants the service and continues at /auth/success
//	@Tags			OAuth
//	@Security		SessionAuth
//	@Param			provider	path		string	true	"Provider name"
//	@Param			code		query		string	false	"Authorization code"
//	@Param			state		query		string	true	"State issued at initiation"
//	@Param			error		query		string	false	"Provider error"
//	@Success		302
//	@Failure		400			{object}	object{success=bool,message=string,error=string}
//	@Failure		401			{object}	object{success=bool,message=string,error=string}
//	@Failure		403			{object}	object{success=bool,message=string,error=string}
//	@Failure		502			{object}	object{success=bool,message=string,error=string}
//	@Router			/auth/{provider}/callback [get]
func (h *OAuthHandler) OAuthCallback(c *gin.Context) {
	name := c.Param("provider")
	provider, ok := h.providers[name]
	if !ok {
		respondFailure(c, http.StatusNotFound, "Unsupported provider",
			"The requested OAuth provider is not configured.")
		return
	}

	state, err := decodeOAuthState(c.Query("state"))
	if err != nil || state.Service == "" {
		respondFailure(c, http.StatusBadRequest, "Service information missing",
			"Service information missing from state")
		return
	}
	if !util.IsRedirectAllowed(state.Redirect, h.allowedHosts) {
		respondFailure(c, http.StatusBadRequest, "Invalid redirect",
			"The redirect URL is not allowed")
		return
	}

	session := sessions.Default(c)
	saved, _ := session.Get(sessionKeyState).(string)
	if saved == "" || saved != state.Nonce {
		respondFailure(c, http.StatusBadRequest, "Invalid state",
			"OAuth session expired or invalid. Please try again.")
		return
	}
	session.Delete(sessionKeyState)

	if errParam := c.Query("error"); errParam != "" {
		_ = session.Save()
		respondFailure(c, http.StatusUnauthorized, "Authorization denied", errParam)
		return
	}

	ctx := c.Request.Context()
	tok, err := provider.ExchangeCode(ctx, c.Query("code"))
	if err != nil {
		h.logger.Warn("code exchange failed", zap.String("provider", name), zap.Error(err))
		respondFailure(c, http.StatusBadGateway, "OAuth error",
			"Failed to exchange authorization code.")
		return
	}
	profile, err := provider.GetUserInfo(ctx, tok)
	if err != nil {
		h.logger.Warn("provider profile fetch failed", zap.String("provider", name), zap.Error(err))
		if errors.Is(err, auth.ErrMissingEmail) {
			respondFailure(c, http.StatusBadRequest, "OAuth error", err.Error())
			return
		}
		respondFailure(c, http.StatusBadGateway, "OAuth error",
			"Failed to retrieve user information from "+provider.GetDisplayName()+".")
		return
	}

	user, err := h.session.CompleteExternalLogin(ctx, profile, state.Service, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	session.Set(sessionKeyUserID, user.ID)
	session.Set(sessionKeyService, state.Service)
	session.Set(sessionKeyRedirect, state.Redirect)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("user authenticated",
		zap.String("user_id", user.ID),
		zap.String("provider", name),
		zap.String("service", state.Service),
	)
	c.Redirect(http.StatusFound, "/auth/success")
}

// Success godoc
//
//	@Summary		Complete an OAuth login
//	@Description	Mints the token pair for the session user, sets the cookies and redirects to the target chosen at initiation
//	@Tags			OAuth
//	@Produce		json
//	@Security		SessionAuth
//	@Success		302
//	@Failure		401	{object}	object{success=bool,message=string,error=string}
//	@Router			/auth/success [get]
func (h *OAuthHandler) Success(c *gin.Context) {
	session := sessions.Default(c)
	userID, _ := session.Get(sessionKeyUserID).(string)
	service, _ := session.Get(sessionKeyService).(string)
	redirect, _ := session.Get(sessionKeyRedirect).(string)
	if userID == "" || service == "" {
		respondFailure(c, http.StatusUnauthorized, "Unauthorized",
			"User not authenticated or service information missing")
		return
	}

	result, err := h.session.CompleteLogin(c.Request.Context(), userID, service, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	session.Delete(sessionKeyService)
	session.Delete(sessionKeyRedirect)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	h.cookies.setTokens(c, result.Access, result.Refresh)
	if redirect == "" {
		c.JSON(http.StatusOK, loginResponse(result))
		return
	}
	c.Redirect(http.StatusFound, redirect)
}
