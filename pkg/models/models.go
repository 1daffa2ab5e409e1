package models

import (
	"database/sql/driver"
	"sort"
	"time"
)

// SemanticType is the single type every value of a typed column carries
type SemanticType int

const (
	TypeInteger SemanticType = iota
	TypeFloat
	TypeTriBool
	TypeCategory
	TypeString
	TypeDate
	TypeEpochDate
	TypeNumericText
	TypeSurrogate
)

var semanticTypeNames = map[SemanticType]string{
	TypeInteger:     "integer",
	TypeFloat:       "float",
	TypeTriBool:     "boolean_tristate",
	TypeCategory:    "category",
	TypeString:      "string",
	TypeDate:        "date",
	TypeEpochDate:   "epoch_timestamp",
	TypeNumericText: "numeric_text",
	TypeSurrogate:   "surrogate",
}

func (t SemanticType) String() string {
	if name, ok := semanticTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsFloat reports whether the type is stored as a non-nullable floating column
func (t SemanticType) IsFloat() bool {
	return t == TypeFloat || t == TypeNumericText
}

// CardinalityPolicy decides whether a categorical column may be replaced by surrogate ids
type CardinalityPolicy int

const (
	StoreDirect CardinalityPolicy = iota
	NormalizeAboveThreshold
)

// ColumnSpec declares one column of a typed table
type ColumnSpec struct {
	Position    int
	Name        string
	Type        SemanticType
	Cardinality CardinalityPolicy
	LongText    bool
}

// TriBool is a boolean with an explicit unknown state
type TriBool int8

const (
	Unknown TriBool = iota
	False
	True
)

func (b TriBool) String() string {
	switch b {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Value implements driver.Valuer so unknown is written as NULL
func (b TriBool) Value() (driver.Value, error) {
	switch b {
	case True:
		return true, nil
	case False:
		return false, nil
	default:
		return nil, nil
	}
}

// RawRecord is one loosely typed listing as it arrives from the feed.
// Keys keeps the order in which fields appeared in the source line.
type RawRecord struct {
	Keys   []string
	Fields map[string]interface{}
}

// NewRawRecord creates an empty raw record
func NewRawRecord() RawRecord {
	return RawRecord{Fields: make(map[string]interface{})}
}

// Set stores a field, appending the key when it is new
func (r *RawRecord) Set(key string, value interface{}) {
	if r.Fields == nil {
		r.Fields = make(map[string]interface{})
	}
	if _, exists := r.Fields[key]; !exists {
		r.Keys = append(r.Keys, key)
	}
	r.Fields[key] = value
}

// Get returns a field value and whether it was present
func (r RawRecord) Get(key string) (interface{}, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// Table is the in-memory typed table. A nil cell is NULL.
type Table struct {
	Name    string
	Columns []ColumnSpec
	Rows    [][]interface{}
}

// ColumnIndex returns the index of a column or -1
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in table order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns every value of one column
func (t *Table) Column(name string) []interface{} {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	values := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values
}

// LookupEntry is one surrogate id assignment
type LookupEntry struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

// Contract maps a categorical column name to its ordered lookup entries
type Contract map[string][]LookupEntry

// Columns returns the contract columns in sorted order
func (c Contract) Columns() []string {
	columns := make([]string, 0, len(c))
	for col := range c {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// Index builds a value to id map for one column
func (c Contract) Index(column string) map[string]int {
	entries := c[column]
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		index[e.Value] = e.ID
	}
	return index
}

// Column represents a destination column as reported by the database
type Column struct {
	Name      string
	ColumnKey string
}

// IsPrimaryKey reports whether the column is part of the primary key
func (c Column) IsPrimaryKey() bool {
	return c.ColumnKey == "PRI"
}

// TableReport holds per-table counters for one run
type TableReport struct {
	Table       string
	RowsRead    int
	RowsDropped int
	RowsWritten int64
	Unmapped    map[string]int
}

// RunReport represents the result of one pipeline run
type RunReport struct {
	RunID    string
	Mode     string
	Tables   []*TableReport
	Started  time.Time
	Duration time.Duration
}

// VerificationResult represents the result of the verification process
type VerificationResult struct {
	Success                  bool
	EmptyTables              []string
	PartiallyPopulatedTables map[string]int
}
