package lookup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vitebski/petsync/pkg/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the contract in an embedded SQLite database
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLiteStore opens (or creates) the SQLite file at path
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create contract directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS lookup_contract (
			column_name TEXT NOT NULL,
			id INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (column_name, id)
		)`,
		`CREATE TABLE IF NOT EXISTS contract_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			saved_at TEXT NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every column of the contract
func (s *SQLiteStore) Load(ctx context.Context) (models.Contract, error) {
	var savedAt string
	err := s.conn.QueryRowContext(ctx, `SELECT saved_at FROM contract_meta WHERE id = 1`).Scan(&savedAt)
	if err == sql.ErrNoRows {
		return nil, ErrContractNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read contract marker: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT column_name, id, value FROM lookup_contract ORDER BY column_name, id`)
	if err != nil {
		return nil, fmt.Errorf("read contract: %w", err)
	}
	defer rows.Close()

	contract := models.Contract{}
	for rows.Next() {
		var column string
		var entry models.LookupEntry
		if err := rows.Scan(&column, &entry.ID, &entry.Value); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contract[column] = append(contract[column], entry)
	}
	return contract, rows.Err()
}

// Save replaces the stored contract in one transaction
func (s *SQLiteStore) Save(ctx context.Context, contract models.Contract) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lookup_contract`); err != nil {
		return fmt.Errorf("clear contract: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO lookup_contract (column_name, id, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, column := range contract.Columns() {
		for _, entry := range contract[column] {
			if _, err := stmt.ExecContext(ctx, column, entry.ID, entry.Value); err != nil {
				return fmt.Errorf("insert %s=%d: %w", column, entry.ID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO contract_meta (id, saved_at) VALUES (1, ?) ON CONFLICT (id) DO UPDATE SET saved_at = excluded.saved_at`,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("write contract marker: %w", err)
	}

	return tx.Commit()
}
