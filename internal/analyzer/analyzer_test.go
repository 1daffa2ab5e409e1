package analyzer

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/connector"
	"github.com/vitebski/petsync/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func TestDescribeTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("shelter", "pets").
		WillReturnRows(sqlmock.NewRows([]string{"name", "column_key"}).
			AddRow("orgID", "").
			AddRow("animalID", []byte("PRI")).
			AddRow("name", nil))

	logger := testLogger()
	analyzer := NewSchemaAnalyzer(connector.NewWithDB(db, connector.MySQL{}, "shelter", logger), logger)

	columns, err := analyzer.DescribeTable(context.Background(), "pets")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(columns) != 3 {
		t.Fatalf("Expected 3 columns, got %d", len(columns))
	}
	if columns[1].Name != "animalID" || !columns[1].IsPrimaryKey() {
		t.Errorf("Expected animalID to be the primary key, got %+v", columns[1])
	}
	if columns[2].IsPrimaryKey() {
		t.Errorf("Expected name not to be a key, got %+v", columns[2])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestPrimaryKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("pragma_table_info").
		WithArgs("new_pets").
		WillReturnRows(sqlmock.NewRows([]string{"name", "column_key"}).
			AddRow("orgID", "").
			AddRow("animalID", "PRI"))
	mock.ExpectQuery("pragma_table_info").
		WithArgs("scratch").
		WillReturnRows(sqlmock.NewRows([]string{"name", "column_key"}).AddRow("animalID", ""))

	logger := testLogger()
	analyzer := NewSchemaAnalyzer(connector.NewWithDB(db, connector.SQLite{}, "pets.db", logger), logger)

	pk, err := analyzer.PrimaryKey(context.Background(), "new_pets")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !reflect.DeepEqual(pk, []string{"animalID"}) {
		t.Errorf("Expected [animalID], got %v", pk)
	}

	pk, err = analyzer.PrimaryKey(context.Background(), "scratch")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(pk) != 0 {
		t.Errorf("Expected no key, got %v", pk)
	}
}

func TestPrimaryKeyColumns(t *testing.T) {
	columns := []models.Column{
		{Name: "orgID", ColumnKey: "PRI"},
		{Name: "name", ColumnKey: "MUL"},
		{Name: "animalID", ColumnKey: "PRI"},
	}
	if pk := PrimaryKeyColumns(columns); !reflect.DeepEqual(pk, []string{"orgID", "animalID"}) {
		t.Errorf("Expected key columns in declared order, got %v", pk)
	}
	if pk := PrimaryKeyColumns([]models.Column{{Name: "value"}}); len(pk) != 0 {
		t.Errorf("Expected no key, got %v", pk)
	}
}

func noop(context.Context) error { return nil }

func TestLoadPlanOrder(t *testing.T) {
	plan := NewLoadPlan(testLogger())
	plan.Add("write new_pets", noop, "resolve new")
	plan.Add("read initial", noop)
	plan.Add("build lookups", noop, "read initial")
	plan.Add("write pets", noop, "build lookups")
	plan.Add("write lookups", noop, "build lookups")
	plan.Add("resolve new", noop, "build lookups")

	order, err := plan.Order()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(order) != 6 {
		t.Fatalf("Expected 6 steps, got %v", order)
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	for _, step := range plan.Steps {
		for _, dep := range step.After {
			if pos[dep] > pos[step.Name] {
				t.Errorf("Expected %s before %s, got %v", dep, step.Name, order)
			}
		}
	}
}

func TestLoadPlanRejectsInvalidPlans(t *testing.T) {
	ran := false
	mark := func(context.Context) error { ran = true; return nil }

	cyclic := NewLoadPlan(testLogger())
	cyclic.Add("a", mark, "b")
	cyclic.Add("b", mark, "a")
	if err := cyclic.Run(context.Background()); !errors.Is(err, ErrCycle) {
		t.Errorf("Expected ErrCycle, got %v", err)
	}

	self := NewLoadPlan(testLogger())
	self.Add("a", mark, "a")
	if _, err := self.Order(); !errors.Is(err, ErrCycle) {
		t.Errorf("Expected ErrCycle for a self dependency, got %v", err)
	}

	unknown := NewLoadPlan(testLogger())
	unknown.Add("a", mark, "missing")
	if err := unknown.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "unknown step") {
		t.Errorf("Expected unknown step error, got %v", err)
	}

	duplicate := NewLoadPlan(testLogger())
	duplicate.Add("a", mark)
	duplicate.Add("a", mark)
	if _, err := duplicate.Order(); err == nil {
		t.Error("Expected duplicate step error")
	}

	if ran {
		t.Error("Expected no step to run for an invalid plan")
	}
}

func TestLoadPlanAbortsOnFailure(t *testing.T) {
	failure := errors.New("destination unavailable")
	var ran []string
	step := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			ran = append(ran, name)
			return err
		}
	}

	plan := NewLoadPlan(testLogger())
	plan.Add("coerce", step("coerce", nil))
	plan.Add("write", step("write", failure), "coerce")
	plan.Add("report", step("report", nil), "write")

	err := plan.Run(context.Background())
	if !errors.Is(err, failure) {
		t.Errorf("Expected the step error to be wrapped, got %v", err)
	}
	if !reflect.DeepEqual(ran, []string{"coerce", "write"}) {
		t.Errorf("Expected to stop after write, ran %v", ran)
	}
}
