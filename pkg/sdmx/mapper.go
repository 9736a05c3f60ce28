package sdmx

import (
	"context"

	"go.uber.org/zap"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	stringpool "github.com/frapercan/IECA2SDMX/pkg/strings"
)

// MappingReport summarizes one MapValues call.
type MappingReport struct {
	// Columns lists the mapped columns in table order.
	Columns []string
	// Unmapped holds, per column, the distinct codes without a target in
	// first-occurrence order.
	Unmapped map[string][]string
	// UnmappedRows counts, per column, the rows whose code had no target.
	UnmappedRows map[string]int
}

// HasUnmapped reports whether any code was left without a target.
func (r *MappingReport) HasUnmapped() bool {
	for _, codes := range r.Unmapped {
		if len(codes) > 0 {
			return true
		}
	}
	return false
}

type mappedColumn struct {
	name   string
	values []interface{}
}

// MapValues replaces the codes of every long-table column listed in
// DimensionsToMap with their targets, as a left join on SOURCE: every row
// is kept, and a code without a target is handled according to the
// configured UnmappedPolicy. All columns are resolved before any is
// written, so on error the long table is left untouched.
func (o *Observations) MapValues(ctx context.Context, store MappingStore) (*MappingReport, error) {
	report := &MappingReport{
		Unmapped:     make(map[string][]string),
		UnmappedRows: make(map[string]int),
	}

	columns := o.mappableColumns()
	o.logger.Info("mapping observations", zap.Strings("columns", columns))

	resolved := make([]mappedColumn, 0, len(columns))
	for _, column := range columns {
		o.logger.Debug("mapping column", zap.String("column", column))

		table, err := store.LoadMapping(ctx, column)
		if err != nil {
			if errors.IsMappingLookup(err) {
				return nil, err
			}
			return nil, errors.Wrap(err, errors.ErrorTypeMappingLookup, "failed to load mapping table").
				WithDetail("column", column)
		}
		if table == nil {
			return nil, errors.New(errors.ErrorTypeMappingLookup, "mapping table not found").
				WithDetail("column", column)
		}

		index, err := table.lookup()
		if err != nil {
			return nil, err
		}

		values, unmapped, misses := o.join(column, index)
		if len(unmapped) > 0 && o.config.UnmappedPolicy == UnmappedError {
			return nil, errors.New(errors.ErrorTypeMappingLookup, "codes without target").
				WithDetail("column", column).
				WithDetail("codes", unmapped)
		}

		report.Columns = append(report.Columns, column)
		report.Unmapped[column] = unmapped
		report.UnmappedRows[column] = misses
		resolved = append(resolved, mappedColumn{name: column, values: values})
	}

	for _, m := range resolved {
		o.long.replaceColumn(m.name, m.values)
		if codes := report.Unmapped[m.name]; len(codes) > 0 {
			o.logger.Warn("codes without target",
				zap.String("column", m.name),
				zap.String("policy", string(o.policy())),
				zap.Strings("codes", codes),
				zap.Int("rows", report.UnmappedRows[m.name]))
		}
	}

	return report, nil
}

func (o *Observations) policy() UnmappedPolicy {
	if o.config.UnmappedPolicy == "" {
		return UnmappedMissing
	}
	return o.config.UnmappedPolicy
}

// join computes the mapped values of column without modifying the table.
func (o *Observations) join(column string, index map[string]string) ([]interface{}, []string, int) {
	j := o.long.index[column]
	values := make([]interface{}, len(o.long.rows))
	seen := make(map[string]struct{})
	var unmapped []string
	misses := 0

	for i, row := range o.long.rows {
		src := row[j]
		if src == nil {
			continue
		}
		code := stringpool.ValueToString(src)
		if target, ok := index[code]; ok {
			values[i] = target
			continue
		}

		misses++
		if _, dup := seen[code]; !dup {
			seen[code] = struct{}{}
			unmapped = append(unmapped, code)
		}
		if o.policy() == UnmappedPassthrough {
			values[i] = src
		}
	}
	return values, unmapped, misses
}
