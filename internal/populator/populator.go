package populator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/analyzer"
	"github.com/vitebski/petsync/internal/connector"
	"github.com/vitebski/petsync/pkg/models"
)

// ErrNoPrimaryKey is returned when upserting into a table without a primary key
var ErrNoPrimaryKey = errors.New("destination table has no primary key")

// TablePopulator writes typed tables to the destination database
type TablePopulator struct {
	DB             *connector.DatabaseConnector
	SchemaAnalyzer *analyzer.SchemaAnalyzer
	Logger         *logrus.Logger
}

// NewTablePopulator creates a new table populator
func NewTablePopulator(db *connector.DatabaseConnector, schemaAnalyzer *analyzer.SchemaAnalyzer, logger *logrus.Logger) *TablePopulator {
	return &TablePopulator{
		DB:             db,
		SchemaAnalyzer: schemaAnalyzer,
		Logger:         logger,
	}
}

// Replace drops and recreates the destination table from the typed table's
// columns, then inserts every row. When pk is set the table is constrained
// by that column. Prior contents are lost.
func (tp *TablePopulator) Replace(ctx context.Context, table *models.Table, pk string) (int64, error) {
	tp.Logger.Infof("Replacing table: %s", table.Name)

	if pk != "" && table.ColumnIndex(pk) < 0 {
		return 0, fmt.Errorf("table %s has no column %s to use as primary key", table.Name, pk)
	}

	dialect := tp.DB.Dialect
	if _, err := tp.DB.ExecuteStatement(ctx, connector.DropTable(dialect, table.Name)); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", table.Name, err)
	}

	for _, stmt := range dialect.CreateTable(table.Name, table.Columns, pk) {
		if _, err := tp.DB.ExecuteStatement(ctx, stmt); err != nil {
			return 0, fmt.Errorf("create table %s: %w", table.Name, err)
		}
	}

	if len(table.Rows) == 0 {
		tp.Logger.Warningf("Table %s created without rows", table.Name)
		return 0, nil
	}

	insertSQL := connector.Insert(dialect, table.Name, table.ColumnNames())
	if _, err := tp.DB.ExecuteMany(ctx, insertSQL, table.Rows); err != nil {
		tp.Logger.Errorf("Error inserting data into table %s: %v", table.Name, err)
		return 0, fmt.Errorf("insert into %s: %w", table.Name, err)
	}

	tp.Logger.Infof("Successfully replaced table %s with %d records", table.Name, len(table.Rows))
	return int64(len(table.Rows)), nil
}

// Upsert inserts each row, or overwrites every non-key column of the row
// already stored under the same primary key. All rows of the call commit
// together; repeating the call with the same rows leaves the same state.
func (tp *TablePopulator) Upsert(ctx context.Context, table *models.Table) (int64, error) {
	tp.Logger.Infof("Upserting into table: %s", table.Name)

	columns, err := tp.SchemaAnalyzer.DescribeTable(ctx, table.Name)
	if err != nil {
		return 0, err
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("destination table %s does not exist", table.Name)
	}

	existing := make([]string, len(columns))
	for i, col := range columns {
		existing[i] = col.Name
	}
	pk := analyzer.PrimaryKeyColumns(columns)
	if len(pk) == 0 {
		return 0, fmt.Errorf("%s: %w", table.Name, ErrNoPrimaryKey)
	}

	if missing, extra := diffColumns(existing, table.ColumnNames()); len(missing) > 0 || len(extra) > 0 {
		return 0, fmt.Errorf("column mismatch for table %s: missing %v, unexpected %v", table.Name, missing, extra)
	}

	if len(table.Rows) == 0 {
		tp.Logger.Infof("No rows to upsert into %s", table.Name)
		return 0, nil
	}

	upsertSQL := tp.DB.Dialect.Upsert(table.Name, table.ColumnNames(), pk)
	if _, err := tp.DB.ExecuteMany(ctx, upsertSQL, table.Rows); err != nil {
		tp.Logger.Errorf("Error upserting into table %s: %v", table.Name, err)
		return 0, fmt.Errorf("upsert into %s: %w", table.Name, err)
	}

	tp.Logger.Infof("Successfully upserted %d records into %s (key: %s)", len(table.Rows), table.Name, strings.Join(pk, ", "))
	return int64(len(table.Rows)), nil
}

// diffColumns returns destination columns absent from the incoming table
// and incoming columns absent from the destination
func diffColumns(existing, incoming []string) (missing, extra []string) {
	have := make(map[string]bool, len(incoming))
	for _, c := range incoming {
		have[c] = true
	}
	want := make(map[string]bool, len(existing))
	for _, c := range existing {
		want[c] = true
		if !have[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range incoming {
		if !want[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
