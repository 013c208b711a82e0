// configstore/memory.go
package configstore

import (
	"context"
	"sync"
)

// MemoryStore keeps configuration in a map guarded by a RWMutex.
type MemoryStore struct {
	mu    sync.RWMutex
	names map[string]map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{names: make(map[string]map[string]string)}
}

// Save replaces the values stored under name.
func (s *MemoryStore) Save(ctx context.Context, name string, values map[string]string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(values) == 0 {
		delete(s.names, name)
		return nil
	}
	s.names[name] = copyValues(values)
	return nil
}

// Load returns a copy of the values stored under name.
func (s *MemoryStore) Load(ctx context.Context, name string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.names[name]
	if !ok {
		return nil, ErrNotFound
	}
	return copyValues(v), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
