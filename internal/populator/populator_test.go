package populator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/analyzer"
	"github.com/vitebski/petsync/internal/config"
	"github.com/vitebski/petsync/internal/connector"
	"github.com/vitebski/petsync/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func petsTable(rows ...[]interface{}) *models.Table {
	return &models.Table{
		Name: "pets",
		Columns: []models.ColumnSpec{
			{Position: 0, Name: "animalID", Type: models.TypeInteger},
			{Position: 1, Name: "name", Type: models.TypeString},
			{Position: 2, Name: "species", Type: models.TypeSurrogate},
			{Position: 3, Name: "adoptionFee", Type: models.TypeFloat},
		},
		Rows: rows,
	}
}

func newMockPopulator(t *testing.T, dialect connector.Dialect) (*TablePopulator, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := testLogger()
	conn := connector.NewWithDB(db, dialect, "shelter", logger)
	return NewTablePopulator(conn, analyzer.NewSchemaAnalyzer(conn, logger), logger), mock
}

func TestReplaceMySQL(t *testing.T) {
	tp, mock := newMockPopulator(t, connector.MySQL{})
	table := petsTable(
		[]interface{}{int64(1), "Rex", int32(3), 0.0},
		[]interface{}{int64(2), nil, nil, 25.5},
	)

	mock.ExpectExec("DROP TABLE IF EXISTS `pets`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE `pets` (`animalID` BIGINT NOT NULL, `name` TEXT, `species` INT, `adoptionFee` DOUBLE NOT NULL)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE `pets` ADD PRIMARY KEY (`animalID`)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO `pets` (`animalID`, `name`, `species`, `adoptionFee`) VALUES (?, ?, ?, ?)")
	prep.ExpectExec().WithArgs(int64(1), "Rex", int64(3), 0.0).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(int64(2), nil, nil, 25.5).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	written, err := tp.Replace(context.Background(), table, "animalID")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if written != 2 {
		t.Errorf("Expected 2 rows written, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestReplaceRejectsUnknownKey(t *testing.T) {
	tp, mock := newMockPopulator(t, connector.MySQL{})
	if _, err := tp.Replace(context.Background(), petsTable(), "petID"); err == nil {
		t.Error("Expected an error for an unknown key column")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Expected nothing to be executed: %v", err)
	}
}

func TestUpsertMySQL(t *testing.T) {
	tp, mock := newMockPopulator(t, connector.MySQL{})
	query, _ := connector.MySQL{}.DescribeTable("shelter", "pets")
	mock.ExpectQuery(query).WithArgs("shelter", "pets").WillReturnRows(
		sqlmock.NewRows([]string{"name", "column_key"}).
			AddRow("animalID", "PRI").
			AddRow("name", "").
			AddRow("species", "").
			AddRow("adoptionFee", ""),
	)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO `pets` (`animalID`, `name`, `species`, `adoptionFee`) VALUES (?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `species` = VALUES(`species`), `adoptionFee` = VALUES(`adoptionFee`)")
	prep.ExpectExec().WithArgs(int64(42), "Max", int64(2), 10.0).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	written, err := tp.Upsert(context.Background(), petsTable([]interface{}{int64(42), "Max", int32(2), 10.0}))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if written != 1 {
		t.Errorf("Expected 1 row applied, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestUpsertPreconditions(t *testing.T) {
	query, _ := connector.MySQL{}.DescribeTable("shelter", "pets")

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr string
	}{
		{
			name:    "missing table",
			rows:    sqlmock.NewRows([]string{"name", "column_key"}),
			wantErr: "does not exist",
		},
		{
			name: "no primary key",
			rows: sqlmock.NewRows([]string{"name", "column_key"}).
				AddRow("animalID", "").AddRow("name", "").AddRow("species", "").AddRow("adoptionFee", ""),
		},
		{
			name: "column mismatch",
			rows: sqlmock.NewRows([]string{"name", "column_key"}).
				AddRow("animalID", "PRI").AddRow("name", "").AddRow("breed", "").AddRow("adoptionFee", ""),
			wantErr: "column mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, mock := newMockPopulator(t, connector.MySQL{})
			mock.ExpectQuery(query).WithArgs("shelter", "pets").WillReturnRows(tt.rows)

			_, err := tp.Upsert(context.Background(), petsTable([]interface{}{int64(1), "Rex", nil, 0.0}))
			if tt.wantErr == "" {
				if !errors.Is(err, ErrNoPrimaryKey) {
					t.Errorf("Expected ErrNoPrimaryKey, got %v", err)
				}
			} else if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Expected no write to be attempted: %v", err)
			}
		})
	}
}

func newSQLitePopulator(t *testing.T) *TablePopulator {
	logger := testLogger()
	conn, err := connector.NewDatabaseConnector(config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "shelter.db"),
	}, logger)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Expected sqlite to open, got %v", err)
	}
	t.Cleanup(conn.Disconnect)
	return NewTablePopulator(conn, analyzer.NewSchemaAnalyzer(conn, logger), logger)
}

func countRows(t *testing.T, tp *TablePopulator, table string) int64 {
	rows, err := tp.DB.ExecuteQuery(context.Background(), "SELECT COUNT(*) AS count FROM "+tp.DB.Dialect.Quote(table))
	if err != nil {
		t.Fatalf("Expected count to succeed, got %v", err)
	}
	return rows[0]["count"].(int64)
}

func TestUpsertUpdatesAndInserts(t *testing.T) {
	ctx := context.Background()
	tp := newSQLitePopulator(t)

	initial := petsTable(
		[]interface{}{int64(7), "Bella", int32(2), 0.0},
		[]interface{}{int64(42), "Max", int32(3), 50.0},
	)
	if _, err := tp.Replace(ctx, initial, "animalID"); err != nil {
		t.Fatalf("Expected replace to succeed, got %v", err)
	}

	update := petsTable(
		[]interface{}{int64(42), "Maximus", nil, 75.0},
		[]interface{}{int64(99), "Luna", int32(1), 0.0},
	)
	if _, err := tp.Upsert(ctx, update); err != nil {
		t.Fatalf("Expected upsert to succeed, got %v", err)
	}

	if got := countRows(t, tp, "pets"); got != 3 {
		t.Errorf("Expected 3 rows after updating 42 and inserting 99, got %d", got)
	}

	rows, err := tp.DB.ExecuteQuery(ctx, `SELECT "name", "species", "adoptionFee" FROM "pets" WHERE "animalID" = ?`, int64(42))
	if err != nil {
		t.Fatalf("Expected select to succeed, got %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected one row for id 42, got %d", len(rows))
	}
	if rows[0]["name"] != "Maximus" || rows[0]["species"] != nil || rows[0]["adoptionFee"] != 75.0 {
		t.Errorf("Expected every non-key column of 42 to be overwritten, got %v", rows[0])
	}

	untouched, err := tp.DB.ExecuteQuery(ctx, `SELECT "name" FROM "pets" WHERE "animalID" = ?`, int64(7))
	if err != nil || len(untouched) != 1 || untouched[0]["name"] != "Bella" {
		t.Errorf("Expected row 7 to be untouched, got %v (%v)", untouched, err)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tp := newSQLitePopulator(t)

	if _, err := tp.Replace(ctx, petsTable([]interface{}{int64(1), "Rex", int32(1), 0.0}), "animalID"); err != nil {
		t.Fatalf("Expected replace to succeed, got %v", err)
	}

	batch := func() *models.Table {
		return petsTable(
			[]interface{}{int64(1), "Rex II", int32(4), 12.5},
			[]interface{}{int64(2), "Tom", nil, 0.0},
		)
	}

	snapshot := func() []map[string]interface{} {
		rows, err := tp.DB.ExecuteQuery(ctx, `SELECT * FROM "pets" ORDER BY "animalID"`)
		if err != nil {
			t.Fatalf("Expected select to succeed, got %v", err)
		}
		return rows
	}

	if _, err := tp.Upsert(ctx, batch()); err != nil {
		t.Fatalf("Expected first upsert to succeed, got %v", err)
	}
	first := snapshot()

	if _, err := tp.Upsert(ctx, batch()); err != nil {
		t.Fatalf("Expected second upsert to succeed, got %v", err)
	}
	second := snapshot()

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("Expected 2 rows both times, got %d and %d", len(first), len(second))
	}
	for i := range first {
		for col, v := range first[i] {
			if second[i][col] != v {
				t.Errorf("Row %d column %s changed on replay: %v -> %v", i, col, v, second[i][col])
			}
		}
	}
}

func TestReplaceLookupTableWithoutKey(t *testing.T) {
	ctx := context.Background()
	tp := newSQLitePopulator(t)

	lookup := &models.Table{
		Name: "primarybreed",
		Columns: []models.ColumnSpec{
			{Position: 0, Name: "id", Type: models.TypeInteger},
			{Position: 1, Name: "value", Type: models.TypeString},
		},
		Rows: [][]interface{}{{int64(1), "Beagle"}, {int64(2), "Collie"}},
	}
	if _, err := tp.Replace(ctx, lookup, ""); err != nil {
		t.Fatalf("Expected replace to succeed, got %v", err)
	}
	// replacing again drops prior contents
	if _, err := tp.Replace(ctx, lookup, ""); err != nil {
		t.Fatalf("Expected second replace to succeed, got %v", err)
	}
	if got := countRows(t, tp, "primarybreed"); got != 2 {
		t.Errorf("Expected 2 rows, got %d", got)
	}

	if _, err := tp.Upsert(ctx, lookup); !errors.Is(err, ErrNoPrimaryKey) {
		t.Errorf("Expected ErrNoPrimaryKey for an unkeyed table, got %v", err)
	}
}
