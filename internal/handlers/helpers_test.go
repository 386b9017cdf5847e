package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/identitygate/internal/auth"
	"github.com/go-authgate/identitygate/internal/client"
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/livechannel"
	"github.com/go-authgate/identitygate/internal/metrics"
	"github.com/go-authgate/identitygate/internal/middleware"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/services"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/token"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testApp is a fully wired gateway on sqlite with small test keys.
type testApp struct {
	store      *store.Store
	keys       *keystore.KeyStore
	identity   *services.IdentityService
	registry   *services.RegistryService
	dispatcher *services.Dispatcher
	session    *services.SessionService
	audit      *services.AuditService
	live       *livechannel.Registry
	providers  map[string]OAuthProvider
	router     *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	s, err := store.New(ctx, "sqlite", ":memory:", &config.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	audit := services.NewAuditService(s, config.AuditPolicyBestEffort, 16)
	t.Cleanup(func() { _ = audit.Shutdown(ctx) })

	rc, err := client.CreateRetryClient(
		client.HTTPOptions{Timeout: 2 * time.Second},
		client.RetryOptions{RetryDelay: 10 * time.Millisecond, MaxRetryDelay: 20 * time.Millisecond},
	)
	require.NoError(t, err)

	keys := keystore.New(t.TempDir(), keystore.WithKeyBits(1024))
	live := livechannel.NewRegistry(4, time.Second)
	identity := services.NewIdentityService(s, auth.NewBcryptHasher(4), nil, time.Minute)
	registry := services.NewRegistryService(s, config.ServiceMatchExact)
	dispatcher := services.NewDispatcher(registry, s, live, rc, metrics.NewNoopMetrics(), time.Minute, nil)
	tokenCfg := &config.Config{
		BaseURL:                "http://localhost:8080",
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
	}
	session := services.NewSessionService(
		identity,
		registry,
		dispatcher,
		token.NewIssuer(tokenCfg, keys),
		audit,
		metrics.NewNoopMetrics(),
		false,
	)

	app := &testApp{
		store:      s,
		keys:       keys,
		identity:   identity,
		registry:   registry,
		dispatcher: dispatcher,
		session:    session,
		audit:      audit,
		live:       live,
		providers:  map[string]OAuthProvider{},
	}
	app.router = app.newRouter()
	return app
}

func (a *testApp) newRouter() *gin.Engine {
	cookies := CookieConfig{}
	oauth := NewOAuthHandler(a.providers, a.session, []string{"app.example.com"}, cookies)
	authH := NewAuthHandler(a.session, cookies)
	keyService := services.NewKeyService(a.keys, a.audit, metrics.NewNoopMetrics())
	keyH := NewKeyHandler(keyService)
	verify := NewVerifyHandler(a.session)
	users := NewUserHandler(a.identity, a.session)
	liveH := NewLiveHandler(a.live, a.dispatcher, 50*time.Millisecond)
	auditH := NewAuditHandler(a.audit)
	servicesH := NewServiceHandler(a.registry, keyService, a.audit)

	r := gin.New()
	r.Use(sessions.Sessions("oauth_session", cookie.NewStore([]byte("test-secret"))))
	requireAuth := middleware.RequireAuth(a.session, a.identity)

	r.GET("/health", Health(a.store))
	r.POST("/auth/login", authH.Login)
	r.POST("/auth/signup", authH.Signup)
	r.POST("/auth/refresh", authH.Refresh)
	r.POST("/auth/logout", authH.Logout)
	r.GET("/auth/me", requireAuth, authH.Me)
	r.GET("/auth/success", oauth.Success)
	r.GET("/auth/:provider", oauth.LoginWithProvider)
	r.GET("/auth/:provider/callback", oauth.OAuthCallback)

	r.POST("/verify/access-token", verify.VerifyAccess)
	r.POST("/verify/refresh-token", verify.VerifyRefresh)

	r.GET("/keys/:service/jwks.json", keyH.JWKS)
	r.POST("/keys/:service/generate",
		requireAuth, middleware.RequirePermission(models.PermManageKeys), keyH.Generate)
	r.GET("/keys/:service/:keyType",
		requireAuth, middleware.RequirePermission(models.PermReadKeys), keyH.PublicKey)

	r.GET("/users", requireAuth, middleware.RequirePermission(models.PermReadUser), users.List)
	r.GET("/users/:id", requireAuth, middleware.RequirePermission(models.PermReadUser), users.Get)
	r.POST("/users", requireAuth, middleware.RequirePermission(models.PermManageUser), users.Create)

	r.GET("/audit/logs", requireAuth, middleware.RequirePermission(models.PermReadAudit), auditH.ListAuditLogs)
	r.GET("/audit/logs/export",
		requireAuth, middleware.RequirePermission(models.PermReadAudit), auditH.ExportAuditLogs)

	manageServices := middleware.RequirePermission(models.PermManageServices)
	r.POST("/services", requireAuth, manageServices, servicesH.Create)
	r.DELETE("/services/:name", requireAuth, manageServices, servicesH.Delete)

	serviceBearer := middleware.RequireServiceBearer(a.registry)
	r.GET("/live", serviceBearer, liveH.Stream)
	r.GET("/services/hook-logs", serviceBearer, liveH.HookLogs)
	return r
}

// addService registers a service with fresh signing keys
func (a *testApp) addService(t *testing.T, name string, public bool, webhooks ...string) *models.Service {
	t.Helper()
	svc, err := a.registry.CreateService(context.Background(), services.CreateServiceInput{
		Name:        name,
		Public:      public,
		WebhookURLs: webhooks,
	})
	require.NoError(t, err)
	require.NoError(t, a.keys.Regenerate(name))
	return svc
}

// signup registers a user through the API and returns the login result body
func (a *testApp) signup(t *testing.T, email, username, service string) map[string]any {
	t.Helper()
	w := a.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"email":    email,
		"username": username,
		"password": "password123",
		"service":  service,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody(t, w)
}

// promote gives an existing user the admin role
func (a *testApp) promote(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	user, err := a.store.GetUserByID(ctx, userID)
	require.NoError(t, err)
	user.Role = models.RoleAdmin
	require.NoError(t, a.store.UpdateUser(ctx, user))
	a.identity.InvalidateUser(ctx, userID)
}

func (a *testApp) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func withBearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookies(cookies []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
