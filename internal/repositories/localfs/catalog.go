package localfs

import (
	"fmt"
	"os"

	"github.com/tavola-kitchen/api/internal/repositories/memory"
)

// LoadCatalog reads a catalog document from disk.
func LoadCatalog(path string) (*memory.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("localfs catalog: read %s: %w", path, err)
	}
	catalog, err := memory.NewCatalogFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("localfs catalog: %s: %w", path, err)
	}
	return catalog, nil
}
