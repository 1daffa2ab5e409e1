package connector

import (
	"fmt"
	"strings"

	"github.com/vitebski/petsync/pkg/models"
)

// Dialect renders the SQL that differs between destination engines
type Dialect interface {
	Name() string
	DriverName() string
	Quote(ident string) string
	Placeholder(n int) string
	ColumnType(col models.ColumnSpec) string
	// CreateTable returns the statements that create a table and, when pk
	// is set, constrain it by that primary key
	CreateTable(table string, columns []models.ColumnSpec, pk string) []string
	Upsert(table string, columns []string, pk []string) string
	// DescribeTable returns a query yielding name and column_key per column,
	// column_key being "PRI" for primary key members
	DescribeTable(database, table string) (string, []interface{})
}

// DialectFor returns the dialect of a configured driver
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql", "":
		return MySQL{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// DropTable renders a destructive drop for any dialect
func DropTable(d Dialect, table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.Quote(table))
}

// Insert renders a plain multi-column insert
func Insert(d Dialect, table string, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		placeholders[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
}

func columnDefs(d Dialect, columns []models.ColumnSpec, pk string) []string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		def := d.Quote(col.Name) + " " + d.ColumnType(col)
		if col.Name == pk && !col.Type.IsFloat() {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return defs
}

func createWithAlter(d Dialect, table string, columns []models.ColumnSpec, pk string) []string {
	stmts := []string{fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(table), strings.Join(columnDefs(d, columns, pk), ", "))}
	if pk != "" {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", d.Quote(table), d.Quote(pk)))
	}
	return stmts
}

func nonKey(columns, pk []string) []string {
	keys := make(map[string]bool, len(pk))
	for _, k := range pk {
		keys[k] = true
	}
	var rest []string
	for _, c := range columns {
		if !keys[c] {
			rest = append(rest, c)
		}
	}
	return rest
}

func onConflictUpsert(d Dialect, table string, columns, pk []string) string {
	quotedPK := make([]string, len(pk))
	for i, k := range pk {
		quotedPK[i] = d.Quote(k)
	}

	rest := nonKey(columns, pk)
	if len(rest) == 0 {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", Insert(d, table, columns), strings.Join(quotedPK, ", "))
	}

	sets := make([]string, len(rest))
	for i, c := range rest {
		sets[i] = fmt.Sprintf("%s = excluded.%s", d.Quote(c), d.Quote(c))
	}
	return fmt.Sprintf(
		"%s ON CONFLICT (%s) DO UPDATE SET %s",
		Insert(d, table, columns),
		strings.Join(quotedPK, ", "),
		strings.Join(sets, ", "),
	)
}

// MySQL is the default destination
type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) ColumnType(col models.ColumnSpec) string {
	switch col.Type {
	case models.TypeInteger:
		return "BIGINT"
	case models.TypeFloat, models.TypeNumericText:
		return "DOUBLE NOT NULL"
	case models.TypeTriBool:
		return "BOOLEAN"
	case models.TypeDate, models.TypeEpochDate:
		return "DATE"
	case models.TypeSurrogate:
		return "INT"
	default:
		if col.LongText {
			return "MEDIUMTEXT"
		}
		return "TEXT"
	}
}

func (d MySQL) CreateTable(table string, columns []models.ColumnSpec, pk string) []string {
	return createWithAlter(d, table, columns, pk)
}

func (d MySQL) Upsert(table string, columns []string, pk []string) string {
	rest := nonKey(columns, pk)
	if len(rest) == 0 {
		rest = pk[:1]
	}
	sets := make([]string, len(rest))
	for i, c := range rest {
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", d.Quote(c), d.Quote(c))
	}
	return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s", Insert(d, table, columns), strings.Join(sets, ", "))
}

func (MySQL) DescribeTable(database, table string) (string, []interface{}) {
	query := `
		SELECT
			column_name AS name,
			column_key AS column_key
		FROM information_schema.columns
		WHERE table_schema = ?
		AND table_name = ?
		ORDER BY ordinal_position
	`
	return query, []interface{}{database, table}
}

// Postgres writes through the pgx stdlib driver
type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) ColumnType(col models.ColumnSpec) string {
	switch col.Type {
	case models.TypeInteger:
		return "BIGINT"
	case models.TypeFloat, models.TypeNumericText:
		return "DOUBLE PRECISION NOT NULL"
	case models.TypeTriBool:
		return "BOOLEAN"
	case models.TypeDate, models.TypeEpochDate:
		return "DATE"
	case models.TypeSurrogate:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (d Postgres) CreateTable(table string, columns []models.ColumnSpec, pk string) []string {
	return createWithAlter(d, table, columns, pk)
}

func (d Postgres) Upsert(table string, columns []string, pk []string) string {
	return onConflictUpsert(d, table, columns, pk)
}

func (Postgres) DescribeTable(_, table string) (string, []interface{}) {
	query := `
		SELECT
			c.column_name AS name,
			CASE WHEN k.column_name IS NULL THEN '' ELSE 'PRI' END AS column_key
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = current_schema()
			AND tc.table_name = $1
		) k ON k.column_name = c.column_name
		WHERE c.table_schema = current_schema()
		AND c.table_name = $1
		ORDER BY c.ordinal_position
	`
	return query, []interface{}{table}
}

// SQLite is used for local runs and tests
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) ColumnType(col models.ColumnSpec) string {
	switch col.Type {
	case models.TypeInteger, models.TypeSurrogate:
		return "INTEGER"
	case models.TypeFloat, models.TypeNumericText:
		return "REAL NOT NULL"
	case models.TypeTriBool:
		return "BOOLEAN"
	case models.TypeDate, models.TypeEpochDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// CreateTable declares the primary key inline; SQLite cannot add one later
func (d SQLite) CreateTable(table string, columns []models.ColumnSpec, pk string) []string {
	defs := columnDefs(d, columns, pk)
	if pk != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", d.Quote(pk)))
	}
	return []string{fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(table), strings.Join(defs, ", "))}
}

func (d SQLite) Upsert(table string, columns []string, pk []string) string {
	return onConflictUpsert(d, table, columns, pk)
}

func (SQLite) DescribeTable(_, table string) (string, []interface{}) {
	query := `
		SELECT
			name AS name,
			CASE WHEN pk > 0 THEN 'PRI' ELSE '' END AS column_key
		FROM pragma_table_info(?)
		ORDER BY cid
	`
	return query, []interface{}{table}
}
