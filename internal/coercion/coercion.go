package coercion

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/internal/schema"
	"github.com/vitebski/petsync/pkg/models"
)

// CoercionError reports a value that violates a strictly typed column
type CoercionError struct {
	Column string
	Row    int
	Value  interface{}
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("schema violation: column %q row %d: cannot coerce %#v to integer", e.Column, e.Row, e.Value)
}

// Stats counts the row-level data quality events of one coercion
type Stats struct {
	RowsRead    int
	RowsDropped int
	Defects     map[string]int
}

// Coercer turns raw records into a typed table using a fixed schema
type Coercer struct {
	Schema *schema.Schema
	Logger *logrus.Logger
}

// NewCoercer creates a new coercer
func NewCoercer(s *schema.Schema, logger *logrus.Logger) *Coercer {
	return &Coercer{
		Schema: s,
		Logger: logger,
	}
}

// Coerce validates the batch, drops rows with a non-numeric identifier,
// coerces every column to its declared type and normalizes nulls
func (c *Coercer) Coerce(name string, records []models.RawRecord) (*models.Table, *Stats, error) {
	stats := &Stats{
		RowsRead: len(records),
		Defects:  make(map[string]int),
	}

	if err := c.Schema.Validate(records); err != nil {
		c.Logger.Errorf("Input for %s does not match the declared schema: %v", name, err)
		return nil, stats, err
	}

	kept, ids, positions := c.dropInvalid(records, stats)

	columns := make([]models.ColumnSpec, len(c.Schema.Columns))
	copy(columns, c.Schema.Columns)

	table := &models.Table{
		Name:    name,
		Columns: columns,
		Rows:    make([][]interface{}, len(kept)),
	}

	for i, rec := range kept {
		row := make([]interface{}, len(columns))
		for j, col := range columns {
			if col.Name == c.Schema.Identifier {
				row[j] = ids[i]
				continue
			}
			raw, _ := rec.Get(col.Name)
			value, defect, err := c.coerceValue(col, raw)
			if err != nil {
				return nil, stats, &CoercionError{Column: col.Name, Row: positions[i], Value: raw}
			}
			if defect {
				stats.Defects[col.Name]++
			}
			row[j] = value
		}
		table.Rows[i] = row
	}

	normalizeNulls(table)

	for _, col := range columns {
		if n := stats.Defects[col.Name]; n > 0 {
			c.Logger.Warningf("Column %s.%s: %d malformed value(s) replaced with null/unknown", name, col.Name, n)
		}
	}
	c.Logger.Infof("Data types converted for %s: %d row(s) kept, %d dropped", name, len(table.Rows), stats.RowsDropped)

	return table, stats, nil
}

// dropInvalid removes records whose identifier is not numeric; these are
// placeholder entries in the feed and are discarded before any typing.
// positions holds the input index of each kept record.
func (c *Coercer) dropInvalid(records []models.RawRecord, stats *Stats) (kept []models.RawRecord, ids []int64, positions []int) {
	kept = make([]models.RawRecord, 0, len(records))
	ids = make([]int64, 0, len(records))
	positions = make([]int, 0, len(records))
	for i, rec := range records {
		raw, _ := rec.Get(c.Schema.Identifier)
		id, ok := parseIdentifier(raw)
		if !ok {
			stats.RowsDropped++
			c.Logger.Debugf("Dropping record with invalid %s: %#v", c.Schema.Identifier, raw)
			continue
		}
		kept = append(kept, rec)
		ids = append(ids, id)
		positions = append(positions, i)
	}
	return kept, ids, positions
}

func (c *Coercer) coerceValue(col models.ColumnSpec, raw interface{}) (interface{}, bool, error) {
	switch col.Type {
	case models.TypeInteger:
		n, ok := toInteger(raw)
		if !ok {
			return nil, false, fmt.Errorf("not an integer")
		}
		return n, false, nil
	case models.TypeFloat:
		v, defect := toFloat(raw)
		return v, defect, nil
	case models.TypeTriBool:
		v, defect := toTriBool(raw)
		return v, defect, nil
	case models.TypeCategory, models.TypeString:
		return toText(raw), false, nil
	case models.TypeDate:
		v, defect := toDate(raw)
		return v, defect, nil
	case models.TypeEpochDate:
		v, defect := toEpochDate(raw)
		return v, defect, nil
	case models.TypeNumericText:
		v, defect := extractNumber(raw)
		return v, defect, nil
	default:
		return nil, false, fmt.Errorf("unsupported semantic type %s", col.Type)
	}
}

// normalizeNulls replaces missing floats with zero; every other missing
// value is already nil
func normalizeNulls(table *models.Table) {
	for j, col := range table.Columns {
		if !col.Type.IsFloat() {
			continue
		}
		for _, row := range table.Rows {
			if row[j] == nil {
				row[j] = 0.0
			}
		}
	}
}
