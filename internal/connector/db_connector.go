package connector

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/config"
	_ "modernc.org/sqlite"
)

// DatabaseConnector handles database connection and query execution
type DatabaseConnector struct {
	Driver   string
	Host     string
	User     string
	Password string
	Database string
	Port     string
	Dialect  Dialect
	DB       *sql.DB
	Logger   *logrus.Logger
}

// NewDatabaseConnector creates a new database connector
func NewDatabaseConnector(cfg config.DatabaseConfig, logger *logrus.Logger) (*DatabaseConnector, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	return &DatabaseConnector{
		Driver:   dialect.Name(),
		Host:     cfg.Host,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Name,
		Port:     cfg.Port,
		Dialect:  dialect,
		Logger:   logger,
	}, nil
}

// NewWithDB wraps an already opened handle
func NewWithDB(db *sql.DB, dialect Dialect, database string, logger *logrus.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Driver:   dialect.Name(),
		Database: database,
		Dialect:  dialect,
		DB:       db,
		Logger:   logger,
	}
}

// DSN builds the driver specific data source name
func (dc *DatabaseConnector) DSN() string {
	switch dc.Dialect.(type) {
	case Postgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(dc.User, dc.Password),
			Host:   net.JoinHostPort(dc.Host, dc.Port),
			Path:   "/" + dc.Database,
		}
		return u.String()
	case SQLite:
		return dc.Database
	default:
		cfg := mysql.NewConfig()
		cfg.User = dc.User
		cfg.Passwd = dc.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(dc.Host, dc.Port)
		cfg.DBName = dc.Database
		cfg.ParseTime = true
		return cfg.FormatDSN()
	}
}

// Connect establishes a connection to the destination database
func (dc *DatabaseConnector) Connect(ctx context.Context) error {
	if dc.Database == "" {
		return fmt.Errorf("database name must be provided either as an argument or as DB_NAME environment variable")
	}

	db, err := sql.Open(dc.Dialect.DriverName(), dc.DSN())
	if err != nil {
		dc.Logger.Errorf("Error connecting to %s database: %v", dc.Driver, err)
		return err
	}
	if _, ok := dc.Dialect.(SQLite); ok {
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		dc.Logger.Errorf("Error pinging %s database: %v", dc.Driver, err)
		db.Close()
		return err
	}

	dc.DB = db
	dc.Logger.Infof("Connected to %s database: %s", dc.Driver, dc.Database)
	return nil
}

// Disconnect closes the database connection
func (dc *DatabaseConnector) Disconnect() {
	if dc.DB != nil {
		err := dc.DB.Close()
		if err != nil {
			dc.Logger.Errorf("Error closing database connection: %v", err)
		} else {
			dc.Logger.Infof("%s connection closed", dc.Driver)
		}
	}
}

// ExecuteQuery executes a SQL query and returns the results
func (dc *DatabaseConnector) ExecuteQuery(ctx context.Context, query string, params ...interface{}) ([]map[string]interface{}, error) {
	if dc.DB == nil {
		if err := dc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	rows, err := dc.DB.QueryContext(ctx, query, params...)
	if err != nil {
		dc.Logger.Errorf("Error executing query: %v", err)
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		dc.Logger.Errorf("Error getting columns: %v", err)
		return nil, err
	}

	var results []map[string]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			dc.Logger.Errorf("Error scanning row: %v", err)
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			// Convert []byte to string for text fields
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		dc.Logger.Errorf("Error iterating rows: %v", err)
		return nil, err
	}

	return results, nil
}

// ExecuteStatement executes a SQL statement and returns the number of affected rows
func (dc *DatabaseConnector) ExecuteStatement(ctx context.Context, query string, params ...interface{}) (int64, error) {
	if dc.DB == nil {
		if err := dc.Connect(ctx); err != nil {
			return 0, err
		}
	}

	result, err := dc.DB.ExecContext(ctx, query, params...)
	if err != nil {
		dc.Logger.Errorf("Error executing statement: %v", err)
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		dc.Logger.Errorf("Error getting affected rows: %v", err)
		return 0, err
	}

	return affected, nil
}

// ExecuteMany executes one prepared statement per parameter set inside a
// single transaction; any failure rolls back every row of the call
func (dc *DatabaseConnector) ExecuteMany(ctx context.Context, query string, paramsList [][]interface{}) (int64, error) {
	if dc.DB == nil {
		if err := dc.Connect(ctx); err != nil {
			return 0, err
		}
	}

	tx, err := dc.DB.BeginTx(ctx, nil)
	if err != nil {
		dc.Logger.Errorf("Error starting transaction: %v", err)
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		dc.Logger.Errorf("Error preparing statement: %v", err)
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var totalAffected int64

	for i, params := range paramsList {
		result, err := stmt.ExecContext(ctx, params...)
		if err != nil {
			dc.Logger.Errorf("Error executing batch statement at row %d: %v", i, err)
			tx.Rollback()
			return 0, fmt.Errorf("row %d: %w", i, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			dc.Logger.Errorf("Error getting affected rows: %v", err)
			tx.Rollback()
			return 0, err
		}

		totalAffected += affected
	}

	if err := tx.Commit(); err != nil {
		dc.Logger.Errorf("Error committing transaction: %v", err)
		tx.Rollback()
		return 0, err
	}

	return totalAffected, nil
}
