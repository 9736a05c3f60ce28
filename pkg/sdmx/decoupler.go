package sdmx

import (
	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

// LongColumns returns the decoupled schema for the given hierarchy aliases,
// without FREQ.
func LongColumns(aliases []string) []string {
	columns := make([]string, 0, len(aliases)+2)
	columns = append(columns, aliases...)
	return append(columns, ColumnIndicator, ColumnObsValue)
}

// Decouple unpivots the wide table: for every measure not listed in drop,
// in measure order, it emits one row per wide row holding the hierarchy
// values, INDICATOR set to the measure name and OBS_VALUE set to the
// measure value. Rows are measure-major and keep the wide-table order
// within a measure. Dropping every measure yields an empty table with the
// full schema.
func Decouple(wide *Table, aliases, measures, drop []string) (*Table, error) {
	aliasIdx := make([]int, len(aliases))
	for i, a := range aliases {
		if aliasIdx[i] = wide.ColumnIndex(a); aliasIdx[i] < 0 {
			return nil, errors.New(errors.ErrorTypeValidation, "hierarchy column missing from wide table").
				WithDetail("column", a)
		}
	}

	dropped := stringSet(drop)
	retained := make([]string, 0, len(measures))
	for _, m := range measures {
		if _, skip := dropped[m]; skip {
			continue
		}
		if !wide.HasColumn(m) {
			return nil, errors.New(errors.ErrorTypeValidation, "measure column missing from wide table").
				WithDetail("column", m)
		}
		retained = append(retained, m)
	}

	width := len(aliases) + 2
	rows := make([][]interface{}, 0, wide.NumRows()*len(retained))
	for _, m := range retained {
		valueIdx := wide.ColumnIndex(m)
		for _, src := range wide.rows {
			row := make([]interface{}, width)
			for k, j := range aliasIdx {
				row[k] = src[j]
			}
			row[width-2] = m
			row[width-1] = src[valueIdx]
			rows = append(rows, row)
		}
	}

	return NewTable(LongColumns(aliases), rows)
}
