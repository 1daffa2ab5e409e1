package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/connector"
	"github.com/vitebski/petsync/pkg/models"
)

// SetupLogging configures the logging system
func SetupLogging(logLevel string) *logrus.Logger {
	// Create a new logger
	logger := logrus.New()

	// Get log level from environment variable or parameter
	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	// Parse log level
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	// Configure logger
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	logger.Debugf("Logging configured with level: %s", level)
	return logger
}

// LoadEnvironmentVariables loads environment variables from .env file
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) bool {
	// Check if a sample .env file exists but not the actual .env file
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		sampleEnvFile := envFile + ".sample"
		if _, err := os.Stat(sampleEnvFile); err == nil {
			logger.Infof("No %s file found, but %s exists. Consider copying %s to %s and updating it.",
				envFile, sampleEnvFile, sampleEnvFile, envFile)
		}
	}

	// Load environment variables from .env file if it exists
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.Warningf("Error loading %s file: %v", envFile, err)
		} else {
			logger.Infof("Loaded environment variables from %s", envFile)
		}
	} else {
		logger.Debugf("No %s file found, using existing environment variables", envFile)
	}

	if os.Getenv("DB_NAME") == "" {
		logger.Warning("Missing required environment variable: DB_NAME")
		logger.Info("It can be provided via command line arguments, environment variables, or a .env file")
		return false
	}

	// Log all available DB_* environment variables (for debugging)
	if logger.Level == logrus.DebugLevel {
		for _, env := range os.Environ() {
			if strings.HasPrefix(env, "DB_") {
				parts := strings.SplitN(env, "=", 2)
				if len(parts) == 2 {
					// Mask password
					if parts[0] == "DB_PASSWORD" {
						logger.Debugf("%s=********", parts[0])
					} else {
						logger.Debugf("%s=%s", parts[0], parts[1])
					}
				}
			}
		}
	}

	return true
}

// PrintSummary prints a summary of one sync run
func PrintSummary(w io.Writer, report *models.RunReport) {
	var totalRead, totalDropped int
	var totalWritten int64
	for _, t := range report.Tables {
		totalRead += t.RowsRead
		totalDropped += t.RowsDropped
		totalWritten += t.RowsWritten
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	fmt.Fprintf(w, "SYNC SUMMARY (%s)\n", report.Mode)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Run: %s\n", report.RunID)
	fmt.Fprintf(w, "Duration: %s\n", report.Duration.Round(1e6))
	fmt.Fprintf(w, "Total tables written: %d\n", len(report.Tables))
	fmt.Fprintf(w, "Total records read: %d\n", totalRead)
	fmt.Fprintf(w, "Total records dropped: %d\n", totalDropped)
	fmt.Fprintf(w, "Total records written: %d\n", totalWritten)

	fmt.Fprintln(w, "\nTables:")
	for _, t := range report.Tables {
		fmt.Fprintf(w, "  - %s: %d read, %d dropped, %d written\n", t.Table, t.RowsRead, t.RowsDropped, t.RowsWritten)
		for _, col := range sortedKeys(t.Unmapped) {
			fmt.Fprintf(w, "      %s: %d unmapped value(s) set to null\n", col, t.Unmapped[col])
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 50))
}

// PrintContract prints the lookup tables of a mapping contract
func PrintContract(w io.Writer, contract models.Contract) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	fmt.Fprintln(w, "LOOKUP TABLES")
	fmt.Fprintln(w, strings.Repeat("=", 50))

	if len(contract) == 0 {
		fmt.Fprintln(w, "No column exceeded the lookup threshold")
	}
	for i, col := range contract.Columns() {
		fmt.Fprintf(w, "%3d. %s (%d values)\n", i+1, col, len(contract[col]))
	}

	fmt.Fprintln(w, strings.Repeat("=", 50))
}

// VerifyTablePopulation verifies that all tables have at least the minimum number of records
func VerifyTablePopulation(ctx context.Context, db *connector.DatabaseConnector, tables []string, minRecords int, logger *logrus.Logger) models.VerificationResult {
	logger.Infof("Verifying that all tables have at least %d record(s)...", minRecords)

	result := models.VerificationResult{
		EmptyTables:              []string{},
		PartiallyPopulatedTables: make(map[string]int),
	}

	for _, table := range tables {
		query := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", db.Dialect.Quote(table))
		rows, err := db.ExecuteQuery(ctx, query)
		if err != nil {
			logger.Warningf("Could not verify record count for table: %s", table)
			result.EmptyTables = append(result.EmptyTables, table)
			continue
		}

		if len(rows) == 0 {
			logger.Warningf("No result returned for count query on table: %s", table)
			result.EmptyTables = append(result.EmptyTables, table)
			continue
		}

		count, ok := rows[0]["count"].(int64)
		if !ok {
			// Try to convert to int64
			countStr := fmt.Sprintf("%v", rows[0]["count"])
			countInt, err := strconv.ParseInt(countStr, 10, 64)
			if err != nil {
				logger.Warningf("Could not parse count for table %s: %v", table, err)
				result.EmptyTables = append(result.EmptyTables, table)
				continue
			}
			count = countInt
		}

		if count == 0 {
			logger.Warningf("Table %s has no records", table)
			result.EmptyTables = append(result.EmptyTables, table)
		} else if count < int64(minRecords) {
			logger.Warningf("Table %s has only %d/%d expected records", table, count, minRecords)
			result.PartiallyPopulatedTables[table] = int(count)
		}
	}

	result.Success = len(result.EmptyTables) == 0 && len(result.PartiallyPopulatedTables) == 0

	if result.Success {
		logger.Info("Verification successful: All tables have at least the minimum number of records")
	} else {
		if len(result.EmptyTables) > 0 {
			logger.Errorf("Verification failed: %d tables have no records", len(result.EmptyTables))
		}
		if len(result.PartiallyPopulatedTables) > 0 {
			logger.Errorf("Verification failed: %d tables are partially populated", len(result.PartiallyPopulatedTables))
		}
	}

	return result
}

// PrintVerificationResults prints the results of the table population verification
func PrintVerificationResults(w io.Writer, result models.VerificationResult, minRecords int) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	fmt.Fprintln(w, "TABLE POPULATION VERIFICATION RESULTS")
	fmt.Fprintln(w, strings.Repeat("=", 50))

	if result.Success {
		fmt.Fprintf(w, "✅ All tables have at least %d record(s)\n", minRecords)
		fmt.Fprintln(w, strings.Repeat("=", 50))
		return
	}

	if len(result.EmptyTables) > 0 {
		fmt.Fprintf(w, "❌ %d tables have no records:\n", len(result.EmptyTables))
		for _, table := range result.EmptyTables {
			fmt.Fprintf(w, "  - %s\n", table)
		}
		fmt.Fprintln(w)
	}

	if len(result.PartiallyPopulatedTables) > 0 {
		fmt.Fprintf(w, "⚠️  %d tables are partially populated:\n", len(result.PartiallyPopulatedTables))
		for _, table := range sortedKeys(result.PartiallyPopulatedTables) {
			fmt.Fprintf(w, "  - %s: %d/%d records\n", table, result.PartiallyPopulatedTables[table], minRecords)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("=", 50))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
