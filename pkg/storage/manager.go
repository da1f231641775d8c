package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "auth_"

// Manager namespaces every key under a prefix before handing it to the
// underlying Adapter. Reads never fail: a broken medium or a corrupt value
// is logged and reported as absent.
type Manager struct {
	adapter Adapter
	prefix  string
	logger  *slog.Logger
}

// NewManager wraps adapter. A nil logger falls back to slog.Default.
func NewManager(adapter Adapter, prefix string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{adapter: adapter, prefix: prefix, logger: logger}
}

// Prefix returns the namespace prepended to every key.
func (m *Manager) Prefix() string { return m.prefix }

// Adapter returns the wrapped medium.
func (m *Manager) Adapter() Adapter { return m.adapter }

func (m *Manager) key(k string) string { return m.prefix + k }

// Get returns the value stored under key. Empty values count as absent.
func (m *Manager) Get(ctx context.Context, key string) (string, bool) {
	v, ok, err := m.adapter.GetItem(ctx, m.key(key))
	if err != nil {
		m.logger.WarnContext(ctx, "storage read failed", "key", m.key(key), "err", err)
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (m *Manager) Set(ctx context.Context, key, value string) error {
	if err := m.adapter.SetItem(ctx, m.key(key), value); err != nil {
		return fmt.Errorf("storage: set %q: %w", m.key(key), err)
	}
	return nil
}

func (m *Manager) Remove(ctx context.Context, key string) error {
	if err := m.adapter.RemoveItem(ctx, m.key(key)); err != nil {
		return fmt.Errorf("storage: remove %q: %w", m.key(key), err)
	}
	return nil
}

// Clear removes this manager's keys. Adapters that cannot list their keys
// are wiped entirely, including entries under other prefixes.
func (m *Manager) Clear(ctx context.Context) error {
	lister, ok := m.adapter.(Lister)
	if !ok {
		if err := m.adapter.Clear(ctx); err != nil {
			return fmt.Errorf("storage: clear: %w", err)
		}
		return nil
	}

	keys, err := lister.Keys(ctx)
	if err != nil {
		return fmt.Errorf("storage: list keys: %w", err)
	}

	var errs []error
	for _, k := range keys {
		if !strings.HasPrefix(k, m.prefix) {
			continue
		}
		if err := m.adapter.RemoveItem(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("storage: remove %q: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// GetObject decodes the JSON stored under key into dst. It reports false
// when the key is absent or holds something that does not decode.
func (m *Manager) GetObject(ctx context.Context, key string, dst any) bool {
	v, ok := m.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		m.logger.WarnContext(ctx, "storage value is not valid JSON", "key", m.key(key), "err", err)
		return false
	}
	return true
}

// SetObject stores v JSON-encoded under key.
func (m *Manager) SetObject(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", m.key(key), err)
	}
	return m.Set(ctx, key, string(b))
}

// Close releases the adapter if it holds resources.
func (m *Manager) Close() error {
	if c, ok := m.adapter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
