package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/natefinch/atomic"

	"github.com/tavola-kitchen/api/internal/repositories"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// SnapshotStore persists each snapshot as <dir>/<namespace>/<key>.json. Writes go through
// a temporary file and rename so readers never observe a partial snapshot.
type SnapshotStore struct {
	dir string
}

var _ repositories.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates the base directory when missing.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if dir == "" {
		return nil, errors.New("localfs snapshot store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("localfs snapshot store: create %s: %w", dir, err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// Get implements repositories.SnapshotStore.
func (s *SnapshotStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	path, err := s.path("localfs.snapshots.get", namespace, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repositories.NewNotFoundError("localfs.snapshots.get")
	}
	if err != nil {
		return nil, &repositories.StoreError{Op: "localfs.snapshots.get", Code: repositories.StoreErrorIO, Err: err}
	}
	return data, nil
}

// Put implements repositories.SnapshotStore.
func (s *SnapshotStore) Put(_ context.Context, namespace, key string, data []byte) error {
	path, err := s.path("localfs.snapshots.put", namespace, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &repositories.StoreError{Op: "localfs.snapshots.put", Code: repositories.StoreErrorIO, Err: err}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return &repositories.StoreError{Op: "localfs.snapshots.put", Code: repositories.StoreErrorIO, Err: err}
	}
	return nil
}

// Delete implements repositories.SnapshotStore. Deleting a missing snapshot succeeds.
func (s *SnapshotStore) Delete(_ context.Context, namespace, key string) error {
	path, err := s.path("localfs.snapshots.delete", namespace, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &repositories.StoreError{Op: "localfs.snapshots.delete", Code: repositories.StoreErrorIO, Err: err}
	}
	return nil
}

func (s *SnapshotStore) path(op, namespace, key string) (string, error) {
	if !segmentPattern.MatchString(namespace) || !segmentPattern.MatchString(key) {
		return "", &repositories.StoreError{
			Op:   op,
			Code: repositories.StoreErrorInvalidKey,
			Err:  fmt.Errorf("invalid namespace %q or key %q", namespace, key),
		}
	}
	return filepath.Join(s.dir, namespace, key+".json"), nil
}
