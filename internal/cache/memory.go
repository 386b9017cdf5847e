package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-authgate/identitygate/internal/core"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds a MemoryCache unless WithMaxEntries says otherwise
const DefaultMaxEntries = 10000

var _ core.Cache[struct{}] = (*MemoryCache[struct{}])(nil)

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

type memoryConfig struct {
	maxEntries int
	now        func() time.Time
}

// MemoryOption configures a MemoryCache
type MemoryOption func(*memoryConfig)

// WithMaxEntries caps the number of stored keys. Values below 1 keep the default.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *memoryConfig) { c.now = now }
}

// MemoryCache is a process-local bounded TTL cache. When full, expired keys
// are pruned first and then the key closest to expiry is evicted. Only
// correct for a single gateway instance: other instances never see a Delete.
type MemoryCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry[T]
	cfg     memoryConfig
	group   singleflight.Group
}

func NewMemoryCache[T any](opts ...MemoryOption) *MemoryCache[T] {
	cfg := memoryConfig{maxEntries: DefaultMaxEntries, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryCache[T]{
		entries: make(map[string]memoryEntry[T]),
		cfg:     cfg,
	}
}

func (m *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !m.cfg.now().Before(e.expiresAt) {
		var zero T
		return zero, ErrCacheMiss
	}
	return e.value, nil
}

func (m *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	now := m.cfg.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.cfg.maxEntries {
		m.makeRoomLocked(now)
	}
	m.entries[key] = memoryEntry[T]{value: value, expiresAt: now.Add(ttl)}
	return nil
}

// makeRoomLocked frees at least one slot. Caller holds the write lock.
func (m *MemoryCache[T]) makeRoomLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
	)
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
			continue
		}
		if victim == "" || e.expiresAt.Before(earliest) {
			victim, earliest = key, e.expiresAt
		}
	}
	if len(m.entries) >= m.cfg.maxEntries && victim != "" {
		delete(m.entries, victim)
	}
}

// Len counts stored keys, expired ones included until pruned
func (m *MemoryCache[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryCache[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// GetWithFetch collapses concurrent misses for one key into a single fetch.
func (m *MemoryCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetch core.FetchFunc[T],
) (T, error) {
	if value, err := m.Get(ctx, key); err == nil {
		return value, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		value, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		_ = m.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (m *MemoryCache[T]) Health(context.Context) error { return nil }

// Close drops every entry
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
	return nil
}
