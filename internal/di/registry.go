package di

import (
	"context"
	"errors"
	"fmt"

	gcs "cloud.google.com/go/storage"

	"github.com/tavola-kitchen/api/internal/platform/config"
	pfirestore "github.com/tavola-kitchen/api/internal/platform/firestore"
	"github.com/tavola-kitchen/api/internal/platform/storage"
	"github.com/tavola-kitchen/api/internal/repositories"
	firestoreRepo "github.com/tavola-kitchen/api/internal/repositories/firestore"
	gcsRepo "github.com/tavola-kitchen/api/internal/repositories/gcs"
	"github.com/tavola-kitchen/api/internal/repositories/localfs"
	"github.com/tavola-kitchen/api/internal/repositories/memory"
)

const healthProbeNamespace = "healthz"

type registry struct {
	snapshots repositories.SnapshotStore
	catalog   repositories.CatalogRepository
	health    repositories.HealthRepository
	backends  *backends
}

var _ repositories.Registry = (*registry)(nil)

func (r *registry) Snapshots() repositories.SnapshotStore   { return r.snapshots }
func (r *registry) Catalog() repositories.CatalogRepository { return r.catalog }
func (r *registry) Health() repositories.HealthRepository   { return r.health }

// Close releases the backend clients opened for the registry.
func (r *registry) Close(ctx context.Context) error {
	return r.backends.close(ctx)
}

// backends lazily opens the cloud clients shared by the configured drivers.
type backends struct {
	cfg       config.Config
	firestore *pfirestore.Provider
	storage   *gcs.Client
	reader    *storage.Reader
	closers   []func(context.Context) error
}

// close releases clients in reverse order of creation.
func (b *backends) close(ctx context.Context) error {
	if b == nil {
		return nil
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func (b *backends) firestoreProvider() *pfirestore.Provider {
	if b.firestore == nil {
		b.firestore = pfirestore.NewProvider(b.cfg.Firestore)
		b.closers = append(b.closers, b.firestore.Close)
	}
	return b.firestore
}

func (b *backends) objectReader(ctx context.Context) (*storage.Reader, error) {
	if b.reader != nil {
		return b.reader, nil
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("open storage client: %w", err)
	}
	b.storage = client
	b.closers = append(b.closers, func(context.Context) error { return client.Close() })
	reader, err := storage.NewReader(client)
	if err != nil {
		return nil, err
	}
	b.reader = reader
	return reader, nil
}

// newRegistry selects the snapshot store and catalog drivers named in cfg and assembles the
// readiness checks for them. extra checks (the order publisher) are appended as given.
func newRegistry(ctx context.Context, b *backends, extra ...repositories.DependencyCheck) (*registry, error) {
	cfg := b.cfg
	reg := &registry{backends: b}

	switch cfg.Cart.Store {
	case config.CartStoreFile:
		store, err := localfs.NewSnapshotStore(cfg.Cart.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open cart snapshot dir: %w", err)
		}
		reg.snapshots = store
	case config.CartStoreFirestore:
		store, err := firestoreRepo.NewSnapshotStore(b.firestoreProvider())
		if err != nil {
			return nil, fmt.Errorf("build firestore snapshot store: %w", err)
		}
		reg.snapshots = store
	default:
		reg.snapshots = memory.NewSnapshotStore()
	}

	checks := []repositories.DependencyCheck{{
		Name:  "snapshots",
		Check: snapshotProbe(reg.snapshots),
	}}

	switch cfg.Catalog.Source {
	case config.CatalogSourceGCS:
		reader, err := b.objectReader(ctx)
		if err != nil {
			return nil, err
		}
		catalog, err := gcsRepo.LoadCatalog(ctx, reader, cfg.Storage.CatalogBucket, cfg.Storage.CatalogObject)
		if err != nil {
			return nil, err
		}
		reg.catalog = catalog
		bucket, object := cfg.Storage.CatalogBucket, cfg.Storage.CatalogObject
		checks = append(checks, repositories.DependencyCheck{
			Name:  "catalog",
			Check: func(ctx context.Context) error { return reader.Stat(ctx, bucket, object) },
		})
	case config.CatalogSourceFirestore:
		catalog, err := firestoreRepo.NewCatalogRepository(b.firestoreProvider())
		if err != nil {
			return nil, fmt.Errorf("build firestore catalog: %w", err)
		}
		reg.catalog = catalog
	default:
		catalog, err := localfs.LoadCatalog(cfg.Catalog.FilePath)
		if err != nil {
			return nil, err
		}
		reg.catalog = catalog
	}

	if b.firestore != nil {
		checks = append(checks, repositories.DependencyCheck{Name: "firestore", Check: b.firestore.Ping})
	}
	checks = append(checks, extra...)

	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	reg.health = health
	return reg, nil
}

// snapshotProbe treats a missing probe key as healthy; only backend failures count.
func snapshotProbe(store repositories.SnapshotStore) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := store.Get(ctx, healthProbeNamespace, "probe")
		if err == nil || repositories.IsNotFound(err) {
			return nil
		}
		return err
	}
}
