package storage

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// mapStore is a mutex-guarded map shared by Memory and Scoped.
type mapStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func newMapStore() *mapStore {
	return &mapStore{items: make(map[string]string)}
}

func (s *mapStore) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	return v, ok, nil
}

func (s *mapStore) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = value
	return nil
}

func (s *mapStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *mapStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.items)
	return nil
}

func (s *mapStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.items)), nil
}

// Memory is an in-process map owned by one client. It does not list its
// keys, so a Manager clearing it wipes everything.
type Memory struct {
	s *mapStore
}

// NewMemory returns an empty Memory adapter.
func NewMemory() *Memory {
	return &Memory{s: newMapStore()}
}

func (m *Memory) GetItem(ctx context.Context, key string) (string, bool, error) {
	return m.s.GetItem(ctx, key)
}

func (m *Memory) SetItem(ctx context.Context, key, value string) error {
	return m.s.SetItem(ctx, key, value)
}

func (m *Memory) RemoveItem(ctx context.Context, key string) error {
	return m.s.RemoveItem(ctx, key)
}

func (m *Memory) Clear(ctx context.Context) error {
	return m.s.Clear(ctx)
}

// Scoped is an enumerable in-process store. Every client configured with
// KindSession shares the process-wide instance returned by Session.
type Scoped struct {
	*mapStore
}

// NewScoped returns an empty Scoped adapter that is not shared.
func NewScoped() *Scoped {
	return &Scoped{mapStore: newMapStore()}
}

var (
	sessionOnce  sync.Once
	sessionStore *Scoped
)

// Session returns the process-wide Scoped adapter.
func Session() *Scoped {
	sessionOnce.Do(func() { sessionStore = NewScoped() })
	return sessionStore
}

var (
	_ Adapter = (*Memory)(nil)
	_ Adapter = (*Scoped)(nil)
	_ Lister  = (*Scoped)(nil)
)
