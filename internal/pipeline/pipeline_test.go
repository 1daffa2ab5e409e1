package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/config"
	"github.com/vitebski/petsync/internal/connector"
	"github.com/vitebski/petsync/internal/generator"
	"github.com/vitebski/petsync/internal/lookup"
	"github.com/vitebski/petsync/internal/schema"
	"github.com/vitebski/petsync/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

type fixture struct {
	pipeline *Pipeline
	db       *connector.DatabaseConnector
	store    lookup.Store
}

func newFixture(t *testing.T, initial, added, updated int) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := testLogger()

	inbox := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		t.Fatalf("Failed to create inbox: %v", err)
	}
	if initial > 0 {
		g := generator.NewRecordGenerator(schema.Pets(), 3, logger)
		if err := g.WriteInbox(inbox, initial, added, updated); err != nil {
			t.Fatalf("Failed to write inbox: %v", err)
		}
	}

	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(dir, "shelter.db")},
		Inbox:    config.InboxConfig{Dir: inbox},
		Contract: config.ContractConfig{Backend: "file", Path: filepath.Join(dir, "lookupTables.json")},
		Lookup:   config.LookupConfig{Threshold: lookup.DefaultThreshold},
		Schedule: config.ScheduleConfig{Spec: "@daily"},
	}

	db, err := connector.NewDatabaseConnector(cfg.Database, logger)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := db.Connect(context.Background()); err != nil {
		t.Fatalf("Expected sqlite to open, got %v", err)
	}
	t.Cleanup(db.Disconnect)

	store := lookup.NewFileStore(cfg.Contract.Path)
	return &fixture{
		pipeline: New(cfg, db, store, logger),
		db:       db,
		store:    store,
	}
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	rows, err := f.db.ExecuteQuery(context.Background(), "SELECT COUNT(*) AS count FROM "+f.db.Dialect.Quote(table))
	if err != nil {
		t.Fatalf("Expected count of %s to succeed, got %v", table, err)
	}
	return rows[0]["count"].(int64)
}

func reportFor(report *models.RunReport, table string) *models.TableReport {
	for _, t := range report.Tables {
		if t.Table == table {
			return t
		}
	}
	return nil
}

func TestFullLoadThenUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30, 4, 10)

	report, err := f.pipeline.FullLoad(ctx)
	if err != nil {
		t.Fatalf("Expected full load to succeed, got %v", err)
	}
	if report.RunID == "" || report.Mode != ModeFullLoad {
		t.Errorf("Expected a run id and full-load mode, got %q %q", report.RunID, report.Mode)
	}

	pets := reportFor(report, PetsTable)
	if pets == nil {
		t.Fatal("Expected pets in the report")
	}
	if pets.RowsRead != 32 || pets.RowsDropped != 2 || pets.RowsWritten != 30 {
		t.Errorf("Expected 32 read, 2 dropped, 30 written, got %+v", pets)
	}
	if got := f.count(t, PetsTable); got != 30 {
		t.Errorf("Expected 30 pets, got %d", got)
	}
	if got := f.count(t, NewPetsTable); got != 4 {
		t.Errorf("Expected 4 new pets, got %d", got)
	}

	contract, err := f.store.Load(ctx)
	if err != nil {
		t.Fatalf("Expected the contract to be written, got %v", err)
	}
	for _, col := range contract.Columns() {
		if got := f.count(t, lookup.TableName(col)); got != int64(len(contract[col])) {
			t.Errorf("Expected lookup table %s to hold %d rows, got %d", col, len(contract[col]), got)
		}
	}

	report, err = f.pipeline.Update(ctx)
	if err != nil {
		t.Fatalf("Expected update to succeed, got %v", err)
	}
	// updates touch 10 existing pets; the 4 new listings are upserted into both tables
	if got := f.count(t, PetsTable); got != 34 {
		t.Errorf("Expected 34 pets after update, got %d", got)
	}
	if got := f.count(t, NewPetsTable); got != 4 {
		t.Errorf("Expected new_pets to stay at 4, got %d", got)
	}
	if got := reportFor(report, PetsTable); got == nil || got.RowsWritten != 14 {
		t.Errorf("Expected 14 pets upserted, got %+v", got)
	}

	// replaying the same exports changes nothing
	if _, err := f.pipeline.Update(ctx); err != nil {
		t.Fatalf("Expected replayed update to succeed, got %v", err)
	}
	if got := f.count(t, PetsTable); got != 34 {
		t.Errorf("Expected replay to keep 34 pets, got %d", got)
	}

	after, err := f.store.Load(ctx)
	if err != nil {
		t.Fatalf("Expected contract to load, got %v", err)
	}
	for _, col := range contract.Columns() {
		if len(after[col]) != len(contract[col]) {
			t.Errorf("Expected contract column %s to stay frozen", col)
		}
	}
}

func TestUpdateWithoutContractFails(t *testing.T) {
	f := newFixture(t, 5, 2, 2)
	if _, err := f.pipeline.Update(context.Background()); !errors.Is(err, lookup.ErrContractNotFound) {
		t.Errorf("Expected ErrContractNotFound, got %v", err)
	}
}

func TestFullLoadWithoutInitialExportFails(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	report, err := f.pipeline.FullLoad(context.Background())
	if err == nil {
		t.Fatal("Expected an error for an empty inbox")
	}
	if len(report.Tables) != 0 {
		t.Errorf("Expected nothing written, got %v", report.Tables)
	}
	if _, err := f.store.Load(context.Background()); !errors.Is(err, lookup.ErrContractNotFound) {
		t.Errorf("Expected no contract to be written, got %v", err)
	}
}

func TestTables(t *testing.T) {
	got := Tables(models.Contract{"primaryBreed": nil, "color": nil})
	want := []string{"pets", "new_pets", "color", "primarybreed"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}
}

func TestSchedulerRunsAndStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var runs int32
	s := &Scheduler{
		Spec: "@every 1s",
		Update: func(ctx context.Context) (*models.RunReport, error) {
			atomic.AddInt32(&runs, 1)
			return &models.RunReport{Mode: ModeUpdate}, nil
		},
		OnReport: func(report *models.RunReport, err error) { cancel() },
		Logger:   testLogger(),
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if atomic.LoadInt32(&runs) < 1 {
		t.Error("Expected at least one scheduled update")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := &Scheduler{Spec: "whenever", Logger: testLogger()}
	if err := s.Run(context.Background()); err == nil {
		t.Error("Expected an error for an invalid schedule")
	}
}
