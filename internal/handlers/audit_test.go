package handlers

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogs(t *testing.T) {
	app := newTestApp(t)
	app.addService(t, "blog", true)

	admin := app.signup(t, "root@example.com", "root", "blog")
	app.promote(t, admin["user"].(map[string]any)["id"].(string))
	adminToken := admin["accessToken"].(string)
	userToken := app.signup(t, "alice@example.com", "alice", "blog")["accessToken"].(string)

	t.Run("list", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/audit/logs?page_size=2", nil, withBearer(adminToken))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Len(t, body["logs"], 2)
		pagination := body["pagination"].(map[string]any)
		assert.Greater(t, pagination["total"].(float64), float64(2))
		assert.Equal(t, true, pagination["has_next"])
	})

	t.Run("filter by actor", func(t *testing.T) {
		id := admin["user"].(map[string]any)["id"].(string)
		w := app.do(t, http.MethodGet, "/audit/logs?actor_user_id="+id, nil, withBearer(adminToken))
		require.Equal(t, http.StatusOK, w.Code)
		for _, entry := range decodeBody(t, w)["logs"].([]any) {
			assert.Equal(t, id, entry.(map[string]any)["actor_user_id"])
		}
	})

	t.Run("export", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/audit/logs/export", nil, withBearer(adminToken))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "audit_logs_")

		rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
		require.NoError(t, err)
		require.Greater(t, len(rows), 1)
		assert.Equal(t, "Event Time", rows[0][0])
		assert.Len(t, rows[0], 10)
	})

	t.Run("plain user", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/audit/logs", nil, withBearer(userToken))
		assert.Equal(t, http.StatusForbidden, w.Code)
		w = app.do(t, http.MethodGet, "/audit/logs/export", nil, withBearer(userToken))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
