package schema

import (
	"fmt"
	"strings"

	"github.com/vitebski/petsync/pkg/models"
)

// SchemaError reports input that no longer matches the declared columns
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation on column %q: %s", e.Column, e.Reason)
}

// Schema is a declarative, position-indexed column schema
type Schema struct {
	Columns    []models.ColumnSpec
	Identifier string
	byName     map[string]int
}

// New validates column declarations and builds a schema
func New(identifier string, columns []models.ColumnSpec) (*Schema, error) {
	s := &Schema{
		Columns:    columns,
		Identifier: identifier,
		byName:     make(map[string]int, len(columns)),
	}

	for i, col := range columns {
		if col.Position != i {
			return nil, fmt.Errorf("column %s declared at position %d, expected %d", col.Name, col.Position, i)
		}
		if _, dup := s.byName[col.Name]; dup {
			return nil, fmt.Errorf("column %s declared twice", col.Name)
		}
		s.byName[col.Name] = i
	}

	id, ok := s.Lookup(identifier)
	if !ok {
		return nil, fmt.Errorf("identifier column %s is not declared", identifier)
	}
	if id.Type != models.TypeInteger {
		return nil, fmt.Errorf("identifier column %s must be an integer column, got %s", identifier, id.Type)
	}

	return s, nil
}

// Lookup returns the declaration of a column
func (s *Schema) Lookup(name string) (models.ColumnSpec, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return models.ColumnSpec{}, false
	}
	return s.Columns[idx], true
}

// Names returns the declared column names in position order
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Validate rejects a batch whose column set or column order does not match.
// A declared column may be absent from individual records, but every
// declared column has to appear somewhere in a non-empty batch.
func (s *Schema) Validate(records []models.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	seen := make([]bool, len(s.Columns))
	for i, rec := range records {
		last := -1
		for _, key := range rec.Keys {
			pos, ok := s.byName[key]
			if !ok {
				return &SchemaError{Column: key, Reason: fmt.Sprintf("undeclared column in record %d", i)}
			}
			if pos <= last {
				return &SchemaError{
					Column: key,
					Reason: fmt.Sprintf("out of order in record %d (position %d after %d)", i, pos, last),
				}
			}
			last = pos
			seen[pos] = true
		}
	}

	var missing []string
	for pos, ok := range seen {
		if !ok {
			missing = append(missing, s.Columns[pos].Name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{
			Column: missing[0],
			Reason: fmt.Sprintf("%d declared column(s) absent from input: %s", len(missing), strings.Join(missing, ", ")),
		}
	}

	return nil
}
