// Package pipeline wires the ingest, coercion, lookup and write stages into
// the full-load and incremental sync runs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/analyzer"
	"github.com/vitebski/petsync/internal/coercion"
	"github.com/vitebski/petsync/internal/config"
	"github.com/vitebski/petsync/internal/connector"
	"github.com/vitebski/petsync/internal/ingest"
	"github.com/vitebski/petsync/internal/lookup"
	"github.com/vitebski/petsync/internal/populator"
	"github.com/vitebski/petsync/internal/schema"
	"github.com/vitebski/petsync/pkg/models"
)

// Destination row-entity tables
const (
	PetsTable    = "pets"
	NewPetsTable = "new_pets"
)

// Run modes
const (
	ModeFullLoad = "full-load"
	ModeUpdate   = "update"
)

// Pipeline runs one sync against a destination database
type Pipeline struct {
	Schema    *schema.Schema
	Inbox     *ingest.Inbox
	Coercer   *coercion.Coercer
	Builder   *lookup.Builder
	Resolver  *lookup.Resolver
	Populator *populator.TablePopulator
	Logger    *logrus.Logger
}

// New creates a pipeline over the pets schema
func New(cfg *config.Config, db *connector.DatabaseConnector, store lookup.Store, logger *logrus.Logger) *Pipeline {
	s := schema.Pets()
	return &Pipeline{
		Schema:    s,
		Inbox:     ingest.NewInbox(cfg.Inbox.Dir, logger),
		Coercer:   coercion.NewCoercer(s, logger),
		Builder:   lookup.NewBuilder(store, cfg.Lookup.Threshold, logger),
		Resolver:  lookup.NewResolver(store, logger),
		Populator: populator.NewTablePopulator(db, analyzer.NewSchemaAnalyzer(db, logger), logger),
		Logger:    logger,
	}
}

// run holds the state shared by the steps of one plan
type run struct {
	report  *models.RunReport
	tables  map[string]*models.Table
	records map[string][]models.RawRecord
	stats   map[string]*TableStats
}

// TableStats is the per-table accounting of a run before it is reported
type TableStats struct {
	Read     int
	Dropped  int
	Unmapped map[string]int
}

func (p *Pipeline) newRun(mode string) *run {
	return &run{
		report: &models.RunReport{
			RunID:   uuid.NewString(),
			Mode:    mode,
			Started: time.Now(),
		},
		tables:  make(map[string]*models.Table),
		records: make(map[string][]models.RawRecord),
		stats:   make(map[string]*TableStats),
	}
}

func (r *run) written(table string, n int64) {
	st := r.stats[table]
	if st == nil {
		st = &TableStats{}
	}
	r.report.Tables = append(r.report.Tables, &models.TableReport{
		Table:       table,
		RowsRead:    st.Read,
		RowsDropped: st.Dropped,
		RowsWritten: n,
		Unmapped:    st.Unmapped,
	})
}

// FullLoad rebuilds the destination from the initial export: it creates
// the mapping contract, replaces pets and one lookup table per normalized
// column, then replaces new_pets resolved against the new contract
func (p *Pipeline) FullLoad(ctx context.Context) (*models.RunReport, error) {
	r := p.newRun(ModeFullLoad)
	var contract models.Contract

	plan := analyzer.NewLoadPlan(p.Logger)
	plan.Add("read initial export", func(ctx context.Context) error {
		records, err := p.Inbox.InitialRecords()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no initial records found in %s", p.Inbox.Dir)
		}
		r.records[PetsTable] = records
		return nil
	})
	plan.Add("coerce pets", p.coerceStep(r, PetsTable), "read initial export")
	plan.Add("build lookup tables", func(ctx context.Context) error {
		var err error
		contract, err = p.Builder.Build(ctx, r.tables[PetsTable])
		return err
	}, "coerce pets")
	plan.Add("write pets", p.replaceStep(r, PetsTable), "build lookup tables")
	plan.Add("write lookup tables", func(ctx context.Context) error {
		for _, t := range lookup.LookupTables(contract) {
			n, err := p.Populator.Replace(ctx, t, "")
			if err != nil {
				return err
			}
			r.written(t.Name, n)
		}
		return nil
	}, "build lookup tables")
	plan.Add("read new listings", p.readStep(r, NewPetsTable, p.Inbox.NewRecords))
	plan.Add("coerce new_pets", p.coerceStep(r, NewPetsTable), "read new listings")
	plan.Add("resolve new_pets", p.resolveStep(r, NewPetsTable), "coerce new_pets", "build lookup tables")
	plan.Add("write new_pets", p.replaceStep(r, NewPetsTable), "resolve new_pets")

	return p.execute(ctx, r, plan)
}

// Update applies the update and new-listing exports to the existing tables
// by upsert, resolving categorical values against the stored contract
func (p *Pipeline) Update(ctx context.Context) (*models.RunReport, error) {
	r := p.newRun(ModeUpdate)

	plan := analyzer.NewLoadPlan(p.Logger)
	plan.Add("read updates", p.readStep(r, PetsTable, p.Inbox.UpdateRecords))
	plan.Add("coerce pets", p.coerceStep(r, PetsTable), "read updates")
	plan.Add("resolve pets", p.resolveStep(r, PetsTable), "coerce pets")
	plan.Add("upsert pets", p.upsertStep(r, PetsTable), "resolve pets")
	plan.Add("read new listings", p.readStep(r, NewPetsTable, p.Inbox.NewRecords))
	plan.Add("coerce new_pets", p.coerceStep(r, NewPetsTable), "read new listings")
	plan.Add("resolve new_pets", p.resolveStep(r, NewPetsTable), "coerce new_pets")
	plan.Add("upsert new_pets", p.upsertStep(r, NewPetsTable), "resolve new_pets")

	return p.execute(ctx, r, plan)
}

func (p *Pipeline) execute(ctx context.Context, r *run, plan *analyzer.LoadPlan) (*models.RunReport, error) {
	log := p.Logger.WithFields(logrus.Fields{
		"run_id": r.report.RunID,
		"mode":   r.report.Mode,
	})
	log.Info("Sync started")

	err := plan.Run(ctx)
	r.report.Duration = time.Since(r.report.Started)
	if err != nil {
		log.WithError(err).Error("Sync failed")
		return r.report, err
	}

	log.WithField("duration", r.report.Duration).Info("Sync finished")
	return r.report, nil
}

func (p *Pipeline) readStep(r *run, table string, read func() ([]models.RawRecord, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		records, err := read()
		if err != nil {
			return err
		}
		r.records[table] = records
		return nil
	}
}

func (p *Pipeline) coerceStep(r *run, table string) func(context.Context) error {
	return func(ctx context.Context) error {
		t, stats, err := p.Coercer.Coerce(table, r.records[table])
		if err != nil {
			return err
		}
		r.tables[table] = t
		r.stats[table] = &TableStats{Read: stats.RowsRead, Dropped: stats.RowsDropped}
		delete(r.records, table)
		return nil
	}
}

func (p *Pipeline) resolveStep(r *run, table string) func(context.Context) error {
	return func(ctx context.Context) error {
		unmapped, err := p.Resolver.Resolve(ctx, r.tables[table])
		if err != nil {
			return err
		}
		if len(unmapped) > 0 {
			r.stats[table].Unmapped = unmapped
		}
		return nil
	}
}

func (p *Pipeline) replaceStep(r *run, table string) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := p.Populator.Replace(ctx, r.tables[table], p.Schema.Identifier)
		if err != nil {
			return err
		}
		r.written(table, n)
		return nil
	}
}

func (p *Pipeline) upsertStep(r *run, table string) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := p.Populator.Upsert(ctx, r.tables[table])
		if err != nil {
			return err
		}
		r.written(table, n)
		return nil
	}
}

// Tables lists the destination tables a run with this contract maintains
func Tables(contract models.Contract) []string {
	tables := []string{PetsTable, NewPetsTable}
	for _, col := range contract.Columns() {
		tables = append(tables, lookup.TableName(col))
	}
	return tables
}
