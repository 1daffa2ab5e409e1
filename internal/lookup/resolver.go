package lookup

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/pkg/models"
)

// Resolver projects categorical values onto an existing, read-only contract
type Resolver struct {
	Store  Store
	Logger *logrus.Logger
}

// NewResolver creates a new schema resolver
func NewResolver(store Store, logger *logrus.Logger) *Resolver {
	return &Resolver{
		Store:  store,
		Logger: logger,
	}
}

// Resolve maps every categorical column present in the contract to its
// surrogate ids. Values missing from the contract become null and are
// counted per column in the returned map; the contract is never extended.
func (r *Resolver) Resolve(ctx context.Context, table *models.Table) (map[string]int, error) {
	contract, err := r.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mapping contract: %w", err)
	}

	unmapped := make(map[string]int)
	for j, col := range table.Columns {
		if col.Type != models.TypeCategory {
			continue
		}
		if _, ok := contract[col.Name]; !ok {
			continue
		}

		if n := applyIndex(table, j, contract.Index(col.Name)); n > 0 {
			unmapped[col.Name] = n
			r.Logger.Warningf("Column %s.%s: %d value(s) not in the mapping contract, set to null", table.Name, col.Name, n)
		}
	}

	r.Logger.Infof("Schema converted for %s against %d lookup table(s)", table.Name, len(contract))
	return unmapped, nil
}
