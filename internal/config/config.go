// Package config loads the sync settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Config holds all sync settings
type Config struct {
	Database DatabaseConfig
	Inbox    InboxConfig
	Contract ContractConfig
	Lookup   LookupConfig
	Schedule ScheduleConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds destination connection settings
type DatabaseConfig struct {
	// Driver is one of mysql, postgres or sqlite (default: mysql)
	Driver   string
	Host     string
	User     string
	Password string
	// Name is the database name, or the file path for sqlite
	Name string
	Port string
}

// InboxConfig points at the directory holding the received archives
type InboxConfig struct {
	Dir string
}

// ContractConfig selects where the mapping contract is persisted
type ContractConfig struct {
	// Backend is file or sqlite (default: file)
	Backend string
	Path    string
}

// LookupConfig holds lookup table settings
type LookupConfig struct {
	// Threshold is the distinct-value count a column must exceed to be normalized (default: 5)
	Threshold int
}

// ScheduleConfig holds the recurring update settings
type ScheduleConfig struct {
	// Spec is a cron expression or descriptor (default: @daily)
	Spec string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// Load reads configuration from environment variables, applies defaults and validates the result
func Load() (*Config, error) {
	driver := strings.ToLower(getEnvOrDefault("DB_DRIVER", "mysql"))

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:   driver,
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			User:     getEnvOrDefault("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			Port:     getEnvOrDefault("DB_PORT", DefaultPort(driver)),
		},
		Inbox: InboxConfig{
			Dir: getEnvOrDefault("INBOX_DIR", "./inbox"),
		},
		Contract: ContractConfig{
			Backend: strings.ToLower(getEnvOrDefault("CONTRACT_BACKEND", "file")),
			Path:    getEnvOrDefault("CONTRACT_PATH", "lookupTables.json"),
		},
		Lookup: LookupConfig{
			Threshold: GetEnvInt("LOOKUP_THRESHOLD", 5),
		},
		Schedule: ScheduleConfig{
			Spec: getEnvOrDefault("SYNC_SCHEDULE", "@daily"),
		},
		Logging: LoggingConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings before any stage runs
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "postgresql", "pgx":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if _, err := strconv.Atoi(c.Database.Port); err != nil {
			return fmt.Errorf("invalid port number: %s", c.Database.Port)
		}
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	switch c.Contract.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unsupported contract backend: %s", c.Contract.Backend)
	}
	if c.Contract.Path == "" {
		return fmt.Errorf("contract path is required")
	}

	if c.Lookup.Threshold < 1 {
		return fmt.Errorf("lookup threshold must be positive, got %d", c.Lookup.Threshold)
	}

	if _, err := cron.ParseStandard(c.Schedule.Spec); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", c.Schedule.Spec, err)
	}

	return nil
}

// DefaultPort returns the usual port of a driver
func DefaultPort(driver string) string {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return "5432"
	case "sqlite", "sqlite3":
		return ""
	default:
		return "3306"
	}
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer value from environment variable
func GetEnvInt(varName string, defaultValue int) int {
	value := os.Getenv(varName)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}
