package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/services"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	tokens map[string]*token.Claims
}

func (f *fakeVerifier) VerifyToken(raw string, class keystore.TokenClass) (*token.Claims, error) {
	if class != keystore.ClassAccess {
		return nil, token.ErrInvalidToken
	}
	claims, ok := f.tokens[raw]
	if !ok {
		return nil, token.ErrInvalidToken
	}
	return claims, nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

type fakeServices map[string]*models.Service

func (f fakeServices) FindByBearerToken(_ context.Context, raw string) (*models.Service, error) {
	if raw == "explode" {
		return nil, errors.New("db down")
	}
	return f[raw], nil
}

func claimsFor(userID, service string) *token.Claims {
	return &token.Claims{
		Service:          service,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
}

func newAuthRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := &fakeVerifier{tokens: map[string]*token.Claims{
		"good-token":  claimsFor("u1", "blog"),
		"admin-token": claimsFor("u2", "blog"),
		"ghost-token": claimsFor("missing", "blog"),
	}}
	users := fakeUsers{
		"u1": {ID: "u1", Username: "alice", Role: models.RoleUser},
		"u2": {ID: "u2", Username: "root", Role: models.RoleAdmin},
	}

	r := gin.New()
	r.Use(RequireAuth(verifier, users))
	r.Use(extra...)
	r.GET("/me", func(c *gin.Context) {
		user := GetUser(c)
		fromCtx := models.GetUserFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"id":      user.ID,
			"service": GetClaims(c).Service,
			"ctx_id":  fromCtx.ID,
		})
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
		wantError  string
	}{
		{"bearer header", "Bearer good-token", "", http.StatusOK, ""},
		{"cookie", "", "good-token", http.StatusOK, ""},
		{"no token", "", "", http.StatusUnauthorized, "No token provided"},
		{"invalid token", "Bearer forged", "", http.StatusUnauthorized, "Invalid token"},
		{"unknown user", "Bearer ghost-token", "", http.StatusUnauthorized, "User not found"},
	}

	r := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u1", body["id"])
				assert.Equal(t, "u1", body["ctx_id"])
				assert.Equal(t, "blog", body["service"])
				return
			}
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestRequirePermission(t *testing.T) {
	r := newAuthRouter(RequirePermission(models.PermManageKeys))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermission_WithoutUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequirePermission(models.PermReadUser), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireServiceBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := fakeServices{"svc-token": {ID: "s1", Name: "blog"}}
	r := gin.New()
	r.GET("/live", RequireServiceBearer(resolver), func(c *gin.Context) {
		c.String(http.StatusOK, GetService(c).Name)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid", "Bearer svc-token", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"unknown", "Bearer nope", http.StatusUnauthorized},
		{"lookup error", "Bearer explode", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/live", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "blog", w.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))
}

func TestAuditAccess(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx, "sqlite", ":memory:", &config.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	audit := services.NewAuditService(s, config.AuditPolicyBestEffort, 16)

	r := newAuthRouter(AuditAccess(audit))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Unauthenticated requests never reach the audit middleware
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	require.NoError(t, audit.Shutdown(ctx))

	logs, page, err := audit.GetAuditLogs(ctx,
		store.NewPaginationParams(1, 10, ""),
		store.AuditLogFilters{EventType: models.EventAccessService},
	)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "u1", logs[0].ActorUserID)
	assert.Equal(t, "alice", logs[0].ActorUsername)
	assert.Equal(t, "blog", logs[0].ResourceName)
	assert.Equal(t, "GET /me", logs[0].Action)
	assert.True(t, logs[0].Success)
}
