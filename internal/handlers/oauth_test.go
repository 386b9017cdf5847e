package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/go-authgate/identitygate/internal/auth"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeProvider struct {
	profile     *auth.Profile
	exchangeErr error
	profileErr  error
}

func (p *fakeProvider) GetAuthURL(state string) string {
	return "https://provider.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "provider-" + code}, nil
}

func (p *fakeProvider) GetUserInfo(context.Context, *oauth2.Token) (*auth.Profile, error) {
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	return p.profile, nil
}

func (p *fakeProvider) GetDisplayName() string { return "Fake" }

func newFakeProvider() *fakeProvider {
	return &fakeProvider{profile: &auth.Profile{
		Provider: "fake",
		ID:       "42",
		Username: "octocat",
		Email:    "octo@example.com",
	}}
}

// initiate starts a login and returns the state and session cookie
func initiate(t *testing.T, app *testApp, query string) (string, *http.Cookie) {
	t.Helper()
	w := app.do(t, http.MethodGet, "/auth/fake?"+query, nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code, w.Body.String())

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "provider.example.com", loc.Host)

	session := findCookie(w, "oauth_session")
	require.NotNil(t, session)
	return loc.Query().Get("state"), session
}

func TestOAuthFlow(t *testing.T) {
	app := newTestApp(t)
	app.addService(t, "blog", true)
	app.providers["fake"] = newFakeProvider()

	state, session := initiate(t, app,
		"service=blog&redirect="+url.QueryEscape("https://app.example.com/done"))

	decoded, err := decodeOAuthState(state)
	require.NoError(t, err)
	assert.Equal(t, "blog", decoded.Service)
	assert.Equal(t, "https://app.example.com/done", decoded.Redirect)

	w := app.do(t, http.MethodGet, "/auth/fake/callback?code=abc&state="+url.QueryEscape(state), nil,
		withCookies([]*http.Cookie{session}))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/auth/success", w.Header().Get("Location"))
	session = findCookie(w, "oauth_session")
	require.NotNil(t, session)

	w = app.do(t, http.MethodGet, "/auth/success", nil, withCookies([]*http.Cookie{session}))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "https://app.example.com/done", w.Header().Get("Location"))

	access := findCookie(w, middleware.AccessTokenCookie)
	require.NotNil(t, access)
	claims, err := app.session.VerifyToken(access.Value, keystore.ClassAccess)
	require.NoError(t, err)
	assert.Equal(t, "blog", claims.Service)
	assert.Equal(t, "octocat", claims.Name)
	require.NotNil(t, findCookie(w, middleware.RefreshTokenCookie))
}

func TestOAuthFlow_ReplayedCallback(t *testing.T) {
	app := newTestApp(t)
	app.addService(t, "blog", true)
	app.providers["fake"] = newFakeProvider()

	state, session := initiate(t, app, "service=blog&redirect=/home")
	callback := "/auth/fake/callback?code=abc&state=" + url.QueryEscape(state)

	w := app.do(t, http.MethodGet, callback, nil, withCookies([]*http.Cookie{session}))
	require.Equal(t, http.StatusFound, w.Code)

	// The nonce is consumed by the first callback
	w = app.do(t, http.MethodGet, callback, nil, withCookies([]*http.Cookie{findCookie(w, "oauth_session")}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid state", decodeBody(t, w)["message"])
}

func TestLoginWithProvider_Errors(t *testing.T) {
	app := newTestApp(t)
	app.providers["fake"] = newFakeProvider()

	tests := []struct {
		name    string
		path    string
		want    int
		message string
	}{
		{"unknown provider", "/auth/nope?service=blog&redirect=/x", http.StatusNotFound, "Unsupported provider"},
		{"missing service", "/auth/fake?redirect=/x", http.StatusBadRequest, "Service information missing"},
		{"missing redirect", "/auth/fake?service=blog", http.StatusBadRequest, "Redirect missing"},
		{
			"foreign redirect",
			"/auth/fake?service=blog&redirect=" + url.QueryEscape("https://evil.example.net/"),
			http.StatusBadRequest,
			"Invalid redirect",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.message, decodeBody(t, w)["message"])
		})
	}
}

func TestOAuthCallback_Errors(t *testing.T) {
	app := newTestApp(t)
	app.addService(t, "blog", true)
	app.addService(t, "chat", false)
	provider := newFakeProvider()
	app.providers["fake"] = provider

	t.Run("garbage state", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/auth/fake/callback?code=abc&state=garbage", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no session", func(t *testing.T) {
		state, _ := initiate(t, app, "service=blog&redirect=/home")
		w := app.do(t, http.MethodGet, "/auth/fake/callback?code=abc&state="+url.QueryEscape(state), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("provider error", func(t *testing.T) {
		state, session := initiate(t, app, "service=blog&redirect=/home")
		w := app.do(t, http.MethodGet,
			"/auth/fake/callback?error=access_denied&state="+url.QueryEscape(state), nil,
			withCookies([]*http.Cookie{session}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "access_denied", decodeBody(t, w)["error"])
	})

	t.Run("exchange failure", func(t *testing.T) {
		provider.exchangeErr = errors.New("boom")
		defer func() { provider.exchangeErr = nil }()
		state, session := initiate(t, app, "service=blog&redirect=/home")
		w := app.do(t, http.MethodGet, "/auth/fake/callback?code=abc&state="+url.QueryEscape(state), nil,
			withCookies([]*http.Cookie{session}))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("missing email", func(t *testing.T) {
		provider.profileErr = auth.ErrMissingEmail
		defer func() { provider.profileErr = nil }()
		state, session := initiate(t, app, "service=blog&redirect=/home")
		w := app.do(t, http.MethodGet, "/auth/fake/callback?code=abc&state="+url.QueryEscape(state), nil,
			withCookies([]*http.Cookie{session}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("tampered redirect", func(t *testing.T) {
		state, session := initiate(t, app, "service=blog&redirect=/home")
		decoded, err := decodeOAuthState(state)
		require.NoError(t, err)
		decoded.Redirect = "https://evil.example.com/steal"
		forged, err := decoded.encode()
		require.NoError(t, err)

		w := app.do(t, http.MethodGet, "/auth/fake/callback?code=abc&state="+url.QueryEscape(forged), nil,
			withCookies([]*http.Cookie{session}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid redirect", decodeBody(t, w)["message"])
		assert.Empty(t, w.Header().Get("Location"))
	})

	t.Run("private service", func(t *testing.T) {
		state, session := initiate(t, app, "service=chat&redirect=/home")
		w := app.do(t, http.MethodGet, "/auth/fake/callback?code=abc&state="+url.QueryEscape(state), nil,
			withCookies([]*http.Cookie{session}))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSuccess_WithoutSession(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/auth/success", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])
}

func TestOAuthState_RoundTrip(t *testing.T) {
	encoded, err := oauthState{Nonce: "n", Service: "blog", Redirect: "/r"}.encode()
	require.NoError(t, err)
	decoded, err := decodeOAuthState(encoded)
	require.NoError(t, err)
	assert.Equal(t, oauthState{Nonce: "n", Service: "blog", Redirect: "/r"}, decoded)

	_, err = decodeOAuthState("not base64!")
	assert.Error(t, err)
}
