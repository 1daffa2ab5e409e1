package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vitebski/petsync/internal/config"
	"github.com/vitebski/petsync/internal/connector"
	"github.com/vitebski/petsync/internal/generator"
	"github.com/vitebski/petsync/internal/lookup"
	"github.com/vitebski/petsync/internal/pipeline"
	"github.com/vitebski/petsync/internal/schema"
	"github.com/vitebski/petsync/internal/utils"
	"github.com/vitebski/petsync/pkg/models"
)

// flags holds persistent flags; a non-empty flag overrides its environment variable
type flags struct {
	driver   string
	host     string
	user     string
	password string
	database string
	port     string
	inbox    string
	contract string
	backend  string
	envFile  string
	logLevel string
}

func (f *flags) apply() {
	overrides := map[string]string{
		"DB_DRIVER":        f.driver,
		"DB_HOST":          f.host,
		"DB_USER":          f.user,
		"DB_PASSWORD":      f.password,
		"DB_NAME":          f.database,
		"DB_PORT":          f.port,
		"INBOX_DIR":        f.inbox,
		"CONTRACT_PATH":    f.contract,
		"CONTRACT_BACKEND": f.backend,
		"LOG_LEVEL":        f.logLevel,
	}
	for key, value := range overrides {
		if value != "" {
			os.Setenv(key, value)
		}
	}
}

// session is everything a command needs to talk to the destination
type session struct {
	cfg    *config.Config
	db     *connector.DatabaseConnector
	store  lookup.Store
	logger *logrus.Logger
	close  func()
}

func (f *flags) open(ctx context.Context) *session {
	logger := utils.SetupLogging(f.logLevel)
	utils.LoadEnvironmentVariables(f.envFile, logger)
	f.apply()

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(levelOrInfo(cfg.Logging.Level))

	db, err := connector.NewDatabaseConnector(cfg.Database, logger)
	if err != nil {
		logger.Errorf("Invalid database configuration: %v", err)
		os.Exit(1)
	}
	if err := db.Connect(ctx); err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	store, closeStore, err := lookup.OpenStore(cfg.Contract.Backend, cfg.Contract.Path)
	if err != nil {
		logger.Errorf("Failed to open mapping contract store: %v", err)
		db.Disconnect()
		os.Exit(1)
	}

	return &session{
		cfg:    cfg,
		db:     db,
		store:  store,
		logger: logger,
		close: func() {
			if err := closeStore(); err != nil {
				logger.Warningf("Error closing contract store: %v", err)
			}
			db.Disconnect()
		},
	}
}

func levelOrInfo(s string) logrus.Level {
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func main() {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:   "petsync",
		Short: "Synchronize shelter animal listings into a relational database",
		Long: `Pet Listing Sync

Loads the zipped JSON exports of an animal shelter listing feed, coerces them
into a fixed typed schema, normalizes high-cardinality categories into lookup
tables and keeps the destination tables in sync by full load or upsert.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&f.driver, "driver", "", "Database driver: mysql, postgres or sqlite (default: mysql)")
	rootCmd.PersistentFlags().StringVarP(&f.host, "host", "H", "", "Database host (default: localhost)")
	rootCmd.PersistentFlags().StringVarP(&f.user, "user", "u", "", "Database user (default: root)")
	rootCmd.PersistentFlags().StringVarP(&f.password, "password", "p", "", "Database password")
	rootCmd.PersistentFlags().StringVarP(&f.database, "database", "d", "", "Database name, or file path for sqlite")
	rootCmd.PersistentFlags().StringVarP(&f.port, "port", "P", "", "Database port (default: 3306 for mysql, 5432 for postgres)")
	rootCmd.PersistentFlags().StringVarP(&f.inbox, "inbox", "i", "", "Directory holding the received archives (default: ./inbox)")
	rootCmd.PersistentFlags().StringVarP(&f.contract, "contract", "c", "", "Mapping contract location (default: lookupTables.json)")
	rootCmd.PersistentFlags().StringVar(&f.backend, "contract-backend", "", "Mapping contract backend: file or sqlite (default: file)")
	rootCmd.PersistentFlags().StringVarP(&f.envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVarP(&f.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		fullLoadCmd(f),
		updateCmd(f),
		scheduleCmd(f),
		sampleCmd(f),
		verifyCmd(f),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func fullLoadCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "full-load",
		Short: "Rebuild pets, new_pets and the lookup tables from the initial export",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			s := f.open(ctx)
			defer s.close()

			report, err := pipeline.New(s.cfg, s.db, s.store, s.logger).FullLoad(ctx)
			utils.PrintSummary(os.Stdout, report)
			if err != nil {
				s.logger.Errorf("Full load failed: %v", err)
				s.close()
				os.Exit(1)
			}

			if contract, err := s.store.Load(ctx); err == nil {
				utils.PrintContract(os.Stdout, contract)
			}
		},
	}
}

func updateCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Upsert the update and new-listing exports into the existing tables",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			s := f.open(ctx)
			defer s.close()

			report, err := pipeline.New(s.cfg, s.db, s.store, s.logger).Update(ctx)
			utils.PrintSummary(os.Stdout, report)
			if err != nil {
				if errors.Is(err, lookup.ErrContractNotFound) {
					s.logger.Error("No mapping contract found; run full-load first")
				}
				s.logger.Errorf("Update failed: %v", err)
				s.close()
				os.Exit(1)
			}
		},
	}
}

func scheduleCmd(f *flags) *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run update on a cron schedule until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			if spec != "" {
				os.Setenv("SYNC_SCHEDULE", spec)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := f.open(ctx)
			defer s.close()

			scheduler := pipeline.NewScheduler(s.cfg.Schedule.Spec, pipeline.New(s.cfg, s.db, s.store, s.logger), s.logger)
			scheduler.OnReport = func(report *models.RunReport, err error) {
				if report != nil {
					utils.PrintSummary(os.Stdout, report)
				}
			}
			if err := scheduler.Run(ctx); err != nil {
				s.logger.Errorf("Scheduler failed: %v", err)
				s.close()
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&spec, "schedule", "s", "", "Cron expression or descriptor (default: SYNC_SCHEDULE or @daily)")
	return cmd
}

func sampleCmd(f *flags) *cobra.Command {
	var (
		initial int
		added   int
		updated int
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write synthetic feed exports into the inbox",
		Run: func(cmd *cobra.Command, args []string) {
			logger := utils.SetupLogging(f.logLevel)
			utils.LoadEnvironmentVariables(f.envFile, logger)
			f.apply()

			dir := os.Getenv("INBOX_DIR")
			if dir == "" {
				dir = "./inbox"
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				logger.Errorf("Failed to create inbox %s: %v", dir, err)
				os.Exit(1)
			}

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			g := generator.NewRecordGenerator(schema.Pets(), seed, logger)
			if err := g.WriteInbox(dir, initial, added, updated); err != nil {
				logger.Errorf("Failed to write sample exports: %v", err)
				os.Exit(1)
			}
			logger.Infof("Sample exports written with seed %s", strconv.FormatInt(seed, 10))
		},
	}

	cmd.Flags().IntVarP(&initial, "records", "r", 100, "Number of listings in the initial export")
	cmd.Flags().IntVar(&added, "new", 10, "Number of listings in the new-listings export")
	cmd.Flags().IntVar(&updated, "updated", 10, "Number of initial listings changed in the updates export")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default: current time)")
	return cmd
}

func verifyCmd(f *flags) *cobra.Command {
	var minRecords int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the destination tables hold at least a minimum number of records",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			s := f.open(ctx)
			defer s.close()

			contract, err := s.store.Load(ctx)
			if err != nil {
				s.logger.Warningf("Lookup tables not verified: %v", err)
				contract = models.Contract{}
			}

			result := utils.VerifyTablePopulation(ctx, s.db, pipeline.Tables(contract), minRecords, s.logger)
			utils.PrintVerificationResults(os.Stdout, result, minRecords)
			if !result.Success {
				s.close()
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVarP(&minRecords, "min-records", "n", 1, "Minimum number of records each table should have")
	return cmd
}
