package sdmx

import (
	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

var reservedColumns = map[string]struct{}{
	ColumnIndicator: {},
	ColumnObsValue:  {},
	ColumnFreq:      {},
}

// BuildWideTable converts positional raw rows into the wide table: the
// hierarchy aliases followed by the measure descriptions, each hierarchy
// cell reduced to its leaf code and each measure cell to its scalar value.
// When cfg.TemporalDimension is one of the columns its values are
// normalized with FormatTemporal. rows is not modified.
func BuildWideTable(rows []RawRow, hierarchies []Hierarchy, measures []Measure, cfg QueryConfig, periodicity string) (*Table, error) {
	aliases := aliasesOf(hierarchies)
	for _, a := range aliases {
		if _, reserved := reservedColumns[a]; reserved {
			return nil, errors.New(errors.ErrorTypeValidation, "hierarchy alias collides with an output column").
				WithDetail("alias", a)
		}
	}
	columns := append(aliases, descriptionsOf(measures)...)
	nh := len(hierarchies)

	out := make([][]interface{}, len(rows))
	for i, raw := range rows {
		if len(raw) != len(columns) {
			return nil, errors.New(errors.ErrorTypeMalformedCell, "row width does not match hierarchies and measures").
				WithDetail("row", i).
				WithDetail("expected", len(columns)).
				WithDetail("actual", len(raw))
		}

		row := make([]interface{}, len(columns))
		for j, cell := range raw {
			var err error
			if j < nh {
				row[j], err = decodeHierarchyCell(cell, i, columns[j])
			} else {
				row[j], err = decodeMeasureCell(cell, i, columns[j], cfg.NormalizeNumbers)
			}
			if err != nil {
				return nil, err
			}
		}
		out[i] = row
	}

	wide, err := NewTable(columns, out)
	if err != nil {
		return nil, err
	}

	if cfg.TemporalDimension != "" && wide.HasColumn(cfg.TemporalDimension) {
		values, _ := wide.Column(cfg.TemporalDimension)
		formatted, err := FormatTemporal(values, periodicity)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeMalformedCell, "failed to normalize temporal dimension").
				WithDetail("column", cfg.TemporalDimension).
				WithDetail("periodicity", periodicity)
		}
		wide.replaceColumn(cfg.TemporalDimension, formatted)
	}

	return wide, nil
}
