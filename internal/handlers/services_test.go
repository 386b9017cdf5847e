package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-authgate/identitygate/internal/keystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceAdmin(t *testing.T) {
	app := newTestApp(t)
	app.addService(t, "blog", true)

	admin := app.signup(t, "root@example.com", "root", "blog")
	app.promote(t, admin["user"].(map[string]any)["id"].(string))
	adminToken := admin["accessToken"].(string)
	userToken := app.signup(t, "alice@example.com", "alice", "blog")["accessToken"].(string)

	t.Run("plain user", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/services", map[string]any{"name": "chat"}, withBearer(userToken))
		assert.Equal(t, http.StatusForbidden, w.Code)
		w = app.do(t, http.MethodDelete, "/services/blog", nil, withBearer(userToken))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("create", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/services", map[string]any{
			"name":         "chat",
			"public":       true,
			"webhook_urls": []string{"https://chat.example.com/hook"},
		}, withBearer(adminToken))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		body := decodeBody(t, w)
		assert.NotEmpty(t, body["bearer_token"])
		assert.Len(t, body["hook_secret"], 64)
		assert.Equal(t, "chat", body["service"].(map[string]any)["name"])

		_, err := app.keys.PublicKeyPEM("chat", keystore.ClassAccess)
		assert.NoError(t, err)
		_, err = app.keys.PublicKeyPEM("chat", keystore.ClassRefresh)
		assert.NoError(t, err)

		svc, err := app.registry.FindByBearerToken(context.Background(), body["bearer_token"].(string))
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.Equal(t, "chat", svc.Name)
	})

	t.Run("create rejects bad input", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/services", map[string]any{"public": true}, withBearer(adminToken))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = app.do(t, http.MethodPost, "/services", map[string]any{
			"name":         "docs",
			"webhook_urls": []string{"ftp://docs.example.com"},
		}, withBearer(adminToken))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = app.do(t, http.MethodPost, "/services", map[string]any{"name": "blog"}, withBearer(adminToken))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("create rolls back when keys cannot be generated", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/services", map[string]any{"name": "bad.name"}, withBearer(adminToken))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		svc, err := app.registry.FindByName(context.Background(), "bad.name")
		require.NoError(t, err)
		assert.Nil(t, svc)
	})

	t.Run("delete", func(t *testing.T) {
		w := app.do(t, http.MethodDelete, "/services/chat", nil, withBearer(adminToken))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		svc, err := app.registry.FindByName(context.Background(), "chat")
		require.NoError(t, err)
		assert.Nil(t, svc)

		w = app.do(t, http.MethodGet, "/keys/chat/jwks.json", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = app.do(t, http.MethodDelete, "/services/chat", nil, withBearer(adminToken))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
