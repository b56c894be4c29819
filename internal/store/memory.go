package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/coronavirus-tracker/internal/location"
)

var (
	// ErrNotFound is returned when no snapshot is held for a provider.
	ErrNotFound = location.ErrSnapshotNotFound
)

// MemoryStore is a concurrency-safe in-process snapshot store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: provider, value: latest snapshot
	data map[location.Provider]location.Snapshot

	// how long an expired snapshot is kept around for stale serving
	staleRetention time.Duration
	now            func() time.Time
}

// NewMemoryStore creates a MemoryStore. Expired snapshots are dropped once
// they are older than staleRetention past their expiry; staleRetention <= 0
// keeps them forever.
func NewMemoryStore(staleRetention time.Duration) *MemoryStore {
	return &MemoryStore{
		data:           make(map[location.Provider]location.Snapshot),
		staleRetention: staleRetention,
		now:            time.Now,
	}
}

// Save replaces the provider's snapshot.
func (s *MemoryStore) Save(_ context.Context, snapshot location.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[snapshot.Provider] = snapshot
	return nil
}

// Load returns the provider's snapshot, expired or not, unless it has
// outlived the stale retention.
func (s *MemoryStore) Load(_ context.Context, provider location.Provider) (location.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.data[provider]
	s.mu.RUnlock()

	if !ok {
		return location.Snapshot{}, ErrNotFound
	}

	if s.staleRetention > 0 && s.now().After(snap.ExpiresAt.Add(s.staleRetention)) {
		s.mu.Lock()
		if cur, ok := s.data[provider]; ok && cur.ID == snap.ID {
			delete(s.data, provider)
		}
		s.mu.Unlock()
		return location.Snapshot{}, ErrNotFound
	}

	return snap, nil
}
