package analyzer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/connector"
	"github.com/vitebski/petsync/pkg/models"
)

// SchemaAnalyzer inspects tables that already exist in the destination
type SchemaAnalyzer struct {
	DB     *connector.DatabaseConnector
	Logger *logrus.Logger
}

// NewSchemaAnalyzer creates a new schema analyzer
func NewSchemaAnalyzer(db *connector.DatabaseConnector, logger *logrus.Logger) *SchemaAnalyzer {
	return &SchemaAnalyzer{
		DB:     db,
		Logger: logger,
	}
}

// DescribeTable returns the destination columns of table in declared order.
// A table that does not exist yields no columns and no error.
func (sa *SchemaAnalyzer) DescribeTable(ctx context.Context, table string) ([]models.Column, error) {
	query, args := sa.DB.Dialect.DescribeTable(sa.DB.Database, table)
	result, err := sa.DB.ExecuteQuery(ctx, query, args...)
	if err != nil {
		sa.Logger.Errorf("Error getting columns for table %s: %v", table, err)
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}

	columns := make([]models.Column, 0, len(result))
	for _, row := range result {
		columns = append(columns, models.Column{
			Name:      toString(row["name"]),
			ColumnKey: toString(row["column_key"]),
		})
	}

	sa.Logger.Debugf("Table %s has %d column(s)", table, len(columns))
	return columns, nil
}

// PrimaryKey returns the primary key columns of table
func (sa *SchemaAnalyzer) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	columns, err := sa.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	return PrimaryKeyColumns(columns), nil
}

// PrimaryKeyColumns picks the primary key columns out of a table description
func PrimaryKeyColumns(columns []models.Column) []string {
	var pk []string
	for _, col := range columns {
		if col.IsPrimaryKey() {
			pk = append(pk, col.Name)
		}
	}
	return pk
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
