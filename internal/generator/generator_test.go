package generator

import (
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/coercion"
	"github.com/vitebski/petsync/internal/ingest"
	"github.com/vitebski/petsync/internal/schema"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func TestBatchCoercesCleanly(t *testing.T) {
	s := schema.Pets()
	g := NewRecordGenerator(s, 7, testLogger())

	records := g.Batch(500, 20, 3)
	if len(records) != 23 {
		t.Fatalf("Expected 23 records, got %d", len(records))
	}
	if err := s.Validate(records); err != nil {
		t.Fatalf("Expected generated records to match the schema, got %v", err)
	}

	table, stats, err := coercion.NewCoercer(s, testLogger()).Coerce("pets", records)
	if err != nil {
		t.Fatalf("Expected coercion to succeed, got %v", err)
	}
	if stats.RowsDropped != 3 {
		t.Errorf("Expected 3 placeholder rows dropped, got %d", stats.RowsDropped)
	}
	if len(table.Rows) != 20 {
		t.Errorf("Expected 20 rows, got %d", len(table.Rows))
	}
	if len(stats.Defects) != 0 {
		t.Errorf("Expected no malformed values, got %v", stats.Defects)
	}

	seen := make(map[int64]bool)
	for _, id := range table.Column(schema.Identifier) {
		seen[id.(int64)] = true
	}
	for id := int64(500); id < 520; id++ {
		if !seen[id] {
			t.Errorf("Expected identifier %d to survive", id)
		}
	}
}

func TestSameSeedSameOutput(t *testing.T) {
	s := schema.Pets()
	a := NewRecordGenerator(s, 42, testLogger()).Batch(1, 5, 1)
	b := NewRecordGenerator(s, 42, testLogger()).Batch(1, 5, 1)
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected equal seeds to generate equal records")
	}
}

func TestWriteInbox(t *testing.T) {
	dir := t.TempDir()
	g := NewRecordGenerator(schema.Pets(), 1, testLogger())
	if err := g.WriteInbox(dir, 10, 4, 20); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	inbox := ingest.NewInbox(dir, testLogger())

	initial, err := inbox.InitialRecords()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(initial) != 12 {
		t.Errorf("Expected 10 listings and 2 placeholders, got %d", len(initial))
	}

	added, err := inbox.NewRecords()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(added) != 5 {
		t.Errorf("Expected 4 listings and 1 placeholder, got %d", len(added))
	}

	updates, err := inbox.UpdateRecords()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	// updates are capped at the initial listing count and read with the new listings
	if len(updates) != 15 {
		t.Errorf("Expected 10 updates and 5 new records, got %d", len(updates))
	}
}
