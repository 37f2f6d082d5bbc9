package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	pfirestore "github.com/tavola-kitchen/api/internal/platform/firestore"
	"github.com/tavola-kitchen/api/internal/repositories"
)

const snapshotCollection = "cartSnapshots"

type snapshotDocument struct {
	Namespace string    `firestore:"namespace"`
	Key       string    `firestore:"key"`
	Data      []byte    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// SnapshotStore keeps snapshots in the cartSnapshots collection, one document per
// namespace and key.
type SnapshotStore struct {
	base *pfirestore.BaseRepository[snapshotDocument]
	now  func() time.Time
}

var _ repositories.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore constructs a Firestore-backed snapshot store.
func NewSnapshotStore(provider *pfirestore.Provider) (*SnapshotStore, error) {
	if provider == nil {
		return nil, errors.New("snapshot store requires firestore provider")
	}
	return &SnapshotStore{
		base: pfirestore.NewBaseRepository[snapshotDocument](provider, snapshotCollection, nil, nil),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Get implements repositories.SnapshotStore.
func (s *SnapshotStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	doc, err := s.base.Get(ctx, snapshotDocID(namespace, key))
	if err != nil {
		return nil, err
	}
	return doc.Data.Data, nil
}

// Put implements repositories.SnapshotStore.
func (s *SnapshotStore) Put(ctx context.Context, namespace, key string, data []byte) error {
	_, err := s.base.Set(ctx, snapshotDocID(namespace, key), snapshotDocument{
		Namespace: namespace,
		Key:       key,
		Data:      data,
		UpdatedAt: s.now(),
	})
	return err
}

// Delete implements repositories.SnapshotStore.
func (s *SnapshotStore) Delete(ctx context.Context, namespace, key string) error {
	return s.base.Delete(ctx, snapshotDocID(namespace, key))
}

// Firestore document ids cannot contain slashes.
func snapshotDocID(namespace, key string) string {
	replacer := strings.NewReplacer("/", "_")
	return replacer.Replace(strings.TrimSpace(namespace)) + ":" + replacer.Replace(strings.TrimSpace(key))
}
