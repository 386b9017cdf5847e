package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-authgate/identitygate/internal/auth"
	"github.com/go-authgate/identitygate/internal/client"
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/livechannel"
	"github.com/go-authgate/identitygate/internal/metrics"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/token"

	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), "sqlite", ":memory:", &config.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func newTestAudit(t *testing.T, s *store.Store, policy string) *AuditService {
	t.Helper()
	a := NewAuditService(s, policy, 16)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func newTestIdentity(s *store.Store) *IdentityService {
	return NewIdentityService(s, auth.NewBcryptHasher(4), nil, time.Minute)
}

func createTestService(
	t *testing.T,
	r *RegistryService,
	name string,
	public bool,
	webhooks ...string,
) *models.Service {
	t.Helper()
	svc, err := r.CreateService(context.Background(), CreateServiceInput{
		Name:        name,
		Public:      public,
		WebhookURLs: webhooks,
	})
	require.NoError(t, err)
	return svc
}

func newTestDispatcher(
	t *testing.T,
	s *store.Store,
	r *RegistryService,
	live *livechannel.Registry,
) *Dispatcher {
	t.Helper()
	rc, err := client.CreateRetryClient(
		client.HTTPOptions{Timeout: 2 * time.Second},
		client.RetryOptions{RetryDelay: 10 * time.Millisecond, MaxRetryDelay: 20 * time.Millisecond},
	)
	require.NoError(t, err)
	return NewDispatcher(r, s, live, rc, metrics.NewNoopMetrics(), time.Minute, nil)
}

func testTokenConfig() *config.Config {
	return &config.Config{
		BaseURL:                "http://localhost:8080",
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
	}
}

func newTestKeys(t *testing.T, services ...string) *keystore.KeyStore {
	t.Helper()
	ks := keystore.New(t.TempDir(), keystore.WithKeyBits(1024))
	for _, name := range services {
		require.NoError(t, ks.Regenerate(name))
	}
	return ks
}

type sessionFixture struct {
	store    *store.Store
	identity *IdentityService
	registry *RegistryService
	session  *SessionService
	issuer   *token.Issuer
}

func newSessionFixture(t *testing.T, notifyRequired bool, keyServices ...string) *sessionFixture {
	t.Helper()
	s := setupTestStore(t)
	identity := newTestIdentity(s)
	registry := NewRegistryService(s, config.ServiceMatchExact)
	issuer := token.NewIssuer(testTokenConfig(), newTestKeys(t, keyServices...))
	session := NewSessionService(
		identity,
		registry,
		newTestDispatcher(t, s, registry, nil),
		issuer,
		newTestAudit(t, s, config.AuditPolicyBestEffort),
		metrics.NewNoopMetrics(),
		notifyRequired,
	)
	return &sessionFixture{
		store:    s,
		identity: identity,
		registry: registry,
		session:  session,
		issuer:   issuer,
	}
}

func countRows(t *testing.T, s *store.Store, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB().Model(model).Count(&n).Error)
	return n
}
