package repositories

import (
	"context"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Snapshots() SnapshotStore
	Catalog() CatalogRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// SnapshotStore is a namespaced key-value store for serialised snapshots.
// Get returns a RepositoryError reporting IsNotFound when the key is absent.
type SnapshotStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, data []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

// CatalogRepository provides read-only access to menu products.
type CatalogRepository interface {
	FindProduct(ctx context.Context, productID string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// HealthRepository aggregates dependency health for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
