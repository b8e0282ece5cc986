package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/zap"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.RWMutex
	prefix  string
	entries map[string]memoryEntry
	now     func() time.Time
	logger  *logging.Service
}

type MemoryOption func(*MemoryStore)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

func NewMemoryStore(prefix string, logger *logging.Service, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		prefix:  prefix,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) SetWithTTL(_ context.Context, ns Namespace, key, value string, ttl time.Duration) error {
	if err := checkEntry(key, ttl); err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[fullKey(m.prefix, ns, key)] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Get(_ context.Context, ns Namespace, key string) (string, bool, error) {
	k := fullKey(m.prefix, ns, key)

	m.mu.RLock()
	entry, ok := m.entries[k]
	m.mu.RUnlock()

	if !ok {
		return "", false, nil
	}

	if !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		// re-check under the write lock; the key may have been rewritten
		if current, ok := m.entries[k]; ok && !m.now().Before(current.expiresAt) {
			delete(m.entries, k)
		}
		m.mu.Unlock()
		return "", false, nil
	}

	return entry.value, true, nil
}

func (m *MemoryStore) Exists(ctx context.Context, ns Namespace, key string) (bool, error) {
	_, ok, err := m.Get(ctx, ns, key)
	return ok, err
}

func (m *MemoryStore) Delete(_ context.Context, ns Namespace, key string) error {
	m.mu.Lock()
	delete(m.entries, fullKey(m.prefix, ns, key))
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SetIfAbsent(_ context.Context, ns Namespace, key, value string, ttl time.Duration) (bool, error) {
	if err := checkEntry(key, ttl); err != nil {
		return false, err
	}

	k := fullKey(m.prefix, ns, key)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[k]; ok && now.Before(entry.expiresAt) {
		return false, nil
	}
	m.entries[k] = memoryEntry{value: value, expiresAt: now.Add(ttl)}

	return true, nil
}

// Sweep drops every expired entry and returns how many were removed.
func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	removed := 0
	for k, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	remaining := len(m.entries)
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Debug("swept expired credential entries",
			zap.Int("expired_count", removed),
			zap.Int("remaining", remaining))
	}

	return removed, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
