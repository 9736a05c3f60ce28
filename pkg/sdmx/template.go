package sdmx

import (
	"context"

	"go.uber.org/zap"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	stringpool "github.com/frapercan/IECA2SDMX/pkg/strings"
)

// MappingTemplates returns, for every long-table column listed in
// DimensionsToMap, a mapping table whose sources are the column's distinct
// values in first-occurrence order and whose targets are empty.
func (o *Observations) MappingTemplates() []*MappingTable {
	columns := o.mappableColumns()
	templates := make([]*MappingTable, 0, len(columns))

	for _, column := range columns {
		j := o.long.index[column]
		seen := make(map[string]struct{})
		table := &MappingTable{Column: column}

		for _, row := range o.long.rows {
			if row[j] == nil {
				continue
			}
			code := stringpool.ValueToString(row[j])
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			table.Entries = append(table.Entries, MappingEntry{Source: code})
		}
		templates = append(templates, table)
	}

	return templates
}

// SaveMappingTemplates persists every template returned by MappingTemplates.
func (o *Observations) SaveMappingTemplates(ctx context.Context, store TemplateStore) error {
	for _, t := range o.MappingTemplates() {
		if err := store.SaveTemplate(ctx, t); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to save mapping template").
				WithDetail("column", t.Column).
				WithDetail("query_id", o.queryID)
		}
		o.logger.Info("mapping template saved",
			zap.String("column", t.Column),
			zap.Int("codes", len(t.Entries)))
	}
	return nil
}
