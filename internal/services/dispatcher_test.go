package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/livechannel"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedHook struct {
	body      []byte
	hookToken string
	signature string
}

func newHookServer(t *testing.T, status int) (*httptest.Server, func() []capturedHook) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []capturedHook
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, capturedHook{
			body:      body,
			hookToken: r.Header.Get(HeaderHookToken),
			signature: r.Header.Get(HeaderHookSignature),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server, func() []capturedHook {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedHook(nil), seen...)
	}
}

// unreachableURL returns the address of a server that is no longer listening
func unreachableURL() string {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}

func testUser() *models.User {
	return &models.User{ID: "u1", Username: "alice", Email: "alice@example.com"}
}

func hookLogs(t *testing.T, s *store.Store, serviceID string) []models.HookLog {
	t.Helper()
	logs, _, err := s.ListHookLogs(context.Background(), serviceID, store.NewPaginationParams(1, 100, ""))
	require.NoError(t, err)
	return logs
}

func TestDispatch_UnreachableWebhook(t *testing.T) {
	s := setupTestStore(t)
	r := NewRegistryService(s, config.ServiceMatchExact)
	svc := createTestService(t, r, "blog", true, unreachableURL())
	d := newTestDispatcher(t, s, r, nil)

	ok, err := d.DispatchLoginNotification(context.Background(), testUser(), "blog", "10.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.False(t, ok)

	logs := hookLogs(t, s, svc.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.HookStatusFailure, logs[0].Status)
	assert.Equal(t, 0, logs[0].StatusCode)
	assert.NotEmpty(t, logs[0].ErrorMessage)
	assert.NotEmpty(t, logs[0].RequestBody)
}

func TestDispatch_ServiceNotFound(t *testing.T) {
	s := setupTestStore(t)
	r := NewRegistryService(s, config.ServiceMatchExact)
	d := newTestDispatcher(t, s, r, nil)

	ok, err := d.DispatchLoginNotification(context.Background(), testUser(), "missing", "", "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrServiceNotFound)
	assert.EqualValues(t, 0, countRows(t, s, &models.HookLog{}))
}

func TestDispatch_SignedWebhookDelivery(t *testing.T) {
	s := setupTestStore(t)
	r := NewRegistryService(s, config.ServiceMatchExact)
	server, captured := newHookServer(t, http.StatusOK)
	svc := createTestService(t, r, "blog", true, server.URL)
	d := newTestDispatcher(t, s, r, nil)

	ok, err := d.DispatchLoginNotification(context.Background(), testUser(), "blog", "10.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.True(t, ok)

	hooks := captured()
	require.Len(t, hooks, 1)
	hook := hooks[0]

	assert.True(t, token.VerifyPayload(svc.HookSecret, hook.body, hook.signature))

	claims, err := token.ParseHookToken(svc.HookSecret, hook.hookToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "blog", claims.Service)
	assert.Equal(t, "10.0.0.1", claims.IP)
	assert.Equal(t, "test-agent", claims.UserAgent)

	var event LoginEvent
	require.NoError(t, json.Unmarshal(hook.body, &event))
	assert.Equal(t, EventUserLogin, event.Event)
	assert.Equal(t, "alice", event.User.Username)
	assert.Equal(t, "blog", event.Service)
	_, err = time.Parse(time.RFC3339Nano, event.Timestamp)
	assert.NoError(t, err)

	logs := hookLogs(t, s, svc.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.HookStatusSuccess, logs[0].Status)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)
	assert.Equal(t, `{"ok":true}`, logs[0].ResponseBody)
}

func TestDispatch_OneLogPerAttempt(t *testing.T) {
	s := setupTestStore(t)
	r := NewRegistryService(s, config.ServiceMatchExact)
	good, _ := newHookServer(t, http.StatusNoContent)
	bad, _ := newHookServer(t, http.StatusBadRequest)
	svc := createTestService(t, r, "blog", true, bad.URL, unreachableURL(), good.URL)
	d := newTestDispatcher(t, s, r, nil)

	ok, err := d.DispatchLoginNotification(context.Background(), testUser(), "blog", "", "")
	require.NoError(t, err)
	assert.True(t, ok, "one accepted delivery is enough")

	logs := hookLogs(t, s, svc.ID)
	require.Len(t, logs, 3)

	byURL := make(map[string]models.HookLog, len(logs))
	for _, l := range logs {
		byURL[l.URL] = l
	}
	assert.Equal(t, models.HookStatusFailure, byURL[bad.URL].Status)
	assert.Equal(t, http.StatusBadRequest, byURL[bad.URL].StatusCode)
	assert.Equal(t, models.HookStatusSuccess, byURL[good.URL].Status)
	assert.Equal(t, http.StatusNoContent, byURL[good.URL].StatusCode)
}

func TestDispatch_LiveChannelFirst(t *testing.T) {
	s := setupTestStore(t)
	r := NewRegistryService(s, config.ServiceMatchExact)
	server, captured := newHookServer(t, http.StatusOK)
	svc := createTestService(t, r, "blog", true, server.URL)

	live := livechannel.NewRegistry(4, time.Second)
	conn := live.Register(svc.ID)
	d := newTestDispatcher(t, s, r, live)

	ok, err := d.DispatchLoginNotification(context.Background(), testUser(), "blog", "", "")
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case msg := <-conn.Messages():
		assert.Equal(t, EventUserLogin, msg.Event)
		var env Envelope
		require.NoError(t, json.Unmarshal(msg.Data, &env))
		assert.True(t, token.VerifyPayload(svc.HookSecret, env.Payload, env.Signature))
		assert.NotEmpty(t, env.Token)
	default:
		t.Fatal("expected a live channel message")
	}
	assert.Len(t, captured(), 1, "webhooks are attempted as well")

	logs := hookLogs(t, s, svc.ID)
	require.Len(t, logs, 2)
	targets := []string{logs[0].URL, logs[1].URL}
	assert.ElementsMatch(t, []string{models.LiveChannelTarget, server.URL}, targets)
}

func TestDispatch_LiveChannelFailureIsLogged(t *testing.T) {
	s := setupTestStore(t)
	r := NewRegistryService(s, config.ServiceMatchExact)
	svc := createTestService(t, r, "blog", true)

	live := livechannel.NewRegistry(1, 20*time.Millisecond)
	live.Register(svc.ID)
	d := newTestDispatcher(t, s, r, live)
	ctx := context.Background()

	// the first event fills the buffer, the second times out
	ok, err := d.DispatchLoginNotification(ctx, testUser(), "blog", "", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.DispatchLoginNotification(ctx, testUser(), "blog", "", "")
	require.NoError(t, err)
	assert.False(t, ok)

	logs := hookLogs(t, s, svc.ID)
	require.Len(t, logs, 2)
	statuses := []string{logs[0].Status, logs[1].Status}
	assert.ElementsMatch(t, []string{models.HookStatusSuccess, models.HookStatusFailure}, statuses)
}

func TestDispatch_NoChannels(t *testing.T) {
	s := setupTestStore(t)
	r := NewRegistryService(s, config.ServiceMatchExact)
	svc := createTestService(t, r, "blog", true)
	d := newTestDispatcher(t, s, r, livechannel.NewRegistry(1, time.Second))

	ok, err := d.DispatchLoginNotification(context.Background(), testUser(), "blog", "", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, hookLogs(t, s, svc.ID))
}
