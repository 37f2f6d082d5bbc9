package gcs

import (
	"context"
	"errors"
	"fmt"

	"github.com/tavola-kitchen/api/internal/repositories/memory"
)

// ObjectReader reads a whole object from a bucket.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// LoadCatalog reads the catalog document from bucket/object and indexes it in memory.
func LoadCatalog(ctx context.Context, reader ObjectReader, bucket, object string) (*memory.Catalog, error) {
	if reader == nil {
		return nil, errors.New("gcs catalog: object reader is required")
	}
	data, err := reader.ReadObject(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("gcs catalog: %w", err)
	}
	catalog, err := memory.NewCatalogFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("gcs catalog: gs://%s/%s: %w", bucket, object, err)
	}
	return catalog, nil
}
