// session/memory.go
package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory, sweeping expired ones on an
// interval.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore starts a store that sweeps every interval (default 10m).
func NewMemoryStore(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	s := &MemoryStore{
		records: make(map[string]*Record),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.sweepLoop(interval)
	return s
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrExpired
	}
	return rec.clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Close stops the sweeper. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	defer close(s.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			s.sweep(now)
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, id)
		}
	}
}
