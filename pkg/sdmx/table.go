package sdmx

import (
	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

// Table is an ordered set of named columns over an ordered list of rows.
// A missing value is nil.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]interface{}
}

// NewTable builds a table. Every row must have one value per column and
// column names must be unique.
func NewTable(columns []string, rows [][]interface{}) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, errors.New(errors.ErrorTypeValidation, "duplicate column name").
				WithDetail("column", c)
		}
		index[c] = i
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.New(errors.ErrorTypeValidation, "row width does not match columns").
				WithDetail("row", i).
				WithDetail("expected", len(columns)).
				WithDetail("actual", len(row))
		}
	}

	if rows == nil {
		rows = [][]interface{}{}
	}

	return &Table{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    rows,
	}, nil
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.rows)
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Row returns a copy of row i as a slice ordered like Columns.
func (t *Table) Row(i int) []interface{} {
	return append([]interface{}(nil), t.rows[i]...)
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) map[string]interface{} {
	rec := make(map[string]interface{}, len(t.columns))
	for j, c := range t.columns {
		rec[c] = t.rows[i][j]
	}
	return rec
}

// Value returns the cell at row i of the named column.
func (t *Table) Value(i int, column string) (interface{}, bool) {
	j, ok := t.index[column]
	if !ok || i < 0 || i >= len(t.rows) {
		return nil, false
	}
	return t.rows[i][j], true
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]interface{}, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]interface{}, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, true
}

// Each calls fn for every row in order. The row slice must not be retained
// or modified.
func (t *Table) Each(fn func(i int, row []interface{}) error) error {
	for i, row := range t.rows {
		if err := fn(i, row); err != nil {
			return err
		}
	}
	return nil
}

// replaceColumn overwrites the named column in place.
func (t *Table) replaceColumn(name string, values []interface{}) {
	j := t.index[name]
	for i := range t.rows {
		t.rows[i][j] = values[i]
	}
}

// withConstant returns a new table with an extra column holding value.
func (t *Table) withConstant(name string, value interface{}) (*Table, error) {
	rows := make([][]interface{}, len(t.rows))
	for i, row := range t.rows {
		next := make([]interface{}, len(row)+1)
		copy(next, row)
		next[len(row)] = value
		rows[i] = next
	}
	return NewTable(append(t.Columns(), name), rows)
}
