package memory

import (
	"context"
	"sync"

	"github.com/tavola-kitchen/api/internal/repositories"
)

// SnapshotStore keeps snapshots in process memory. Data is lost on restart.
type SnapshotStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ repositories.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore constructs an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{entries: make(map[string][]byte)}
}

// Get implements repositories.SnapshotStore.
func (s *SnapshotStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.entries[entryKey(namespace, key)]
	if !ok {
		return nil, repositories.NewNotFoundError("memory.snapshots.get")
	}
	return append([]byte(nil), data...), nil
}

// Put implements repositories.SnapshotStore.
func (s *SnapshotStore) Put(_ context.Context, namespace, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey(namespace, key)] = append([]byte(nil), data...)
	return nil
}

// Delete implements repositories.SnapshotStore.
func (s *SnapshotStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryKey(namespace, key))
	return nil
}

// Len reports how many snapshots are held.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func entryKey(namespace, key string) string {
	return namespace + "\x00" + key
}
