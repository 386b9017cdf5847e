package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-authgate/identitygate/internal/keystore"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	app := newTestApp(t)
	app.addService(t, "blog", true)
	app.addService(t, "chat", true)

	admin := app.signup(t, "root@example.com", "root", "blog")
	app.promote(t, admin["user"].(map[string]any)["id"].(string))
	adminToken := admin["accessToken"].(string)
	userToken := app.signup(t, "alice@example.com", "alice", "blog")["accessToken"].(string)

	t.Run("jwks is public", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/keys/blog/jwks.json", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))

		var set jose.JSONWebKeySet
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &set))
		assert.Len(t, set.Keys, 2)
		for _, k := range set.Keys {
			assert.True(t, k.IsPublic())
			assert.Equal(t, "RS256", k.Algorithm)
		}
	})

	t.Run("jwks unknown service", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/keys/ghost/jwks.json", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("public pem requires read permission", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/keys/blog/access", nil, withBearer(userToken))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = app.do(t, http.MethodGet, "/keys/blog/access", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("public pem", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/keys/blog/access", nil, withBearer(adminToken))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/x-pem-file", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "BEGIN RSA PUBLIC KEY")

		w = app.do(t, http.MethodGet, "/keys/blog/Refresh", nil, withBearer(adminToken))
		assert.Equal(t, http.StatusOK, w.Code)

		w = app.do(t, http.MethodGet, "/keys/blog/signing", nil, withBearer(adminToken))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("generate requires manage permission", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/keys/chat/generate", nil, withBearer(userToken))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("generate rotates keys", func(t *testing.T) {
		before, err := app.keys.PublicKeyPEM("chat", keystore.ClassAccess)
		require.NoError(t, err)

		w := app.do(t, http.MethodPost, "/keys/chat/generate", nil, withBearer(adminToken))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "Keys generated for service chat", decodeBody(t, w)["message"])

		after, err := app.keys.PublicKeyPEM("chat", keystore.ClassAccess)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("generate invalid name", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/keys/bad.name/generate", nil, withBearer(adminToken))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
