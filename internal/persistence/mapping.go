package persistence

import (
	"fmt"
	"strings"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Mapping describes how one entity type is stored: its table, its columns and
// how to read and assign its identity. It replaces any runtime discovery of
// the key field.
type Mapping[T any, ID comparable] struct {
	Table    string
	IDColumn string
	// Columns lists the non-identity columns in the order Values returns them.
	Columns []string

	// Identity returns the entity's key and whether it has been assigned.
	Identity func(T) (ID, bool)
	// WithIdentity returns a copy of the entity carrying id.
	WithIdentity func(T, ID) T
	// Values returns the column values in Columns order.
	Values func(T) []any
	// Scan reads one row shaped like SelectAll.
	Scan func(Scanner) (T, error)
}

// Validate reports the first missing piece of the mapping.
func (m Mapping[T, ID]) Validate() error {
	switch {
	case m.Table == "":
		return fmt.Errorf("table is required: %w", ErrInvalidMapping)
	case m.IDColumn == "":
		return fmt.Errorf("%s: id column is required: %w", m.Table, ErrInvalidMapping)
	case len(m.Columns) == 0:
		return fmt.Errorf("%s: at least one column is required: %w", m.Table, ErrInvalidMapping)
	case m.WithIdentity == nil || m.Values == nil || m.Scan == nil:
		return fmt.Errorf("%s: WithIdentity, Values and Scan are required: %w", m.Table, ErrInvalidMapping)
	}
	return nil
}

// AllColumns returns the identity column followed by Columns.
func (m Mapping[T, ID]) AllColumns() []string {
	cols := make([]string, 0, len(m.Columns)+1)
	cols = append(cols, m.IDColumn)
	return append(cols, m.Columns...)
}

// SelectAll returns a query selecting every row of the table in the shape
// Scan expects.
func (m Mapping[T, ID]) SelectAll() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(m.AllColumns(), ", "), m.Table)
}
