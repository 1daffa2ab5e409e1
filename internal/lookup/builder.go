package lookup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/pkg/models"
)

// DefaultThreshold is the distinct-value count a categorical column must exceed to be normalized
const DefaultThreshold = 5

// Builder assigns surrogate ids on the first run and persists the contract
type Builder struct {
	Store     Store
	Threshold int
	Logger    *logrus.Logger
}

// NewBuilder creates a new lookup table builder
func NewBuilder(store Store, threshold int, logger *logrus.Logger) *Builder {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Builder{
		Store:     store,
		Threshold: threshold,
		Logger:    logger,
	}
}

// Build replaces every high-cardinality categorical column of table with
// surrogate ids numbered 1..N in sorted value order, then overwrites the
// persisted contract with the new assignments
func (b *Builder) Build(ctx context.Context, table *models.Table) (models.Contract, error) {
	contract := models.Contract{}

	for j, col := range table.Columns {
		if col.Type != models.TypeCategory || col.Cardinality != models.NormalizeAboveThreshold {
			continue
		}

		values := distinctValues(table, j)
		if len(values) <= b.Threshold {
			b.Logger.Debugf("Column %s has %d distinct value(s), stored directly", col.Name, len(values))
			continue
		}

		entries := make([]models.LookupEntry, len(values))
		index := make(map[string]int, len(values))
		for i, v := range values {
			entries[i] = models.LookupEntry{ID: i + 1, Value: v}
			index[v] = i + 1
		}
		contract[col.Name] = entries

		applyIndex(table, j, index)
		b.Logger.Debugf("Column %s normalized into %d surrogate id(s)", col.Name, len(entries))
	}

	if err := b.Store.Save(ctx, contract); err != nil {
		return nil, fmt.Errorf("save mapping contract: %w", err)
	}

	b.Logger.Infof("Schema converted for %s: %d lookup table(s) created", table.Name, len(contract))
	return contract, nil
}

// distinctValues returns the sorted set of non-null values of one column
func distinctValues(table *models.Table, j int) []string {
	seen := make(map[string]bool)
	for _, row := range table.Rows {
		if s, ok := row[j].(string); ok {
			seen[s] = true
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// applyIndex swaps the values of column j for their ids and returns how
// many non-null values had no id
func applyIndex(table *models.Table, j int, index map[string]int) int {
	unmapped := 0
	for _, row := range table.Rows {
		s, ok := row[j].(string)
		if !ok {
			row[j] = nil
			continue
		}
		id, found := index[s]
		if !found {
			row[j] = nil
			unmapped++
			continue
		}
		row[j] = int32(id)
	}
	table.Columns[j].Type = models.TypeSurrogate
	return unmapped
}

// LookupTables renders a contract as destination tables of (id, value)
func LookupTables(contract models.Contract) []*models.Table {
	tables := make([]*models.Table, 0, len(contract))
	for _, column := range contract.Columns() {
		t := &models.Table{
			Name: TableName(column),
			Columns: []models.ColumnSpec{
				{Position: 0, Name: "id", Type: models.TypeInteger},
				{Position: 1, Name: "value", Type: models.TypeString},
			},
		}
		for _, e := range contract[column] {
			t.Rows = append(t.Rows, []interface{}{int64(e.ID), e.Value})
		}
		tables = append(tables, t)
	}
	return tables
}

// TableName is the destination table holding a column's lookup entries
func TableName(column string) string {
	return strings.ToLower(column)
}
