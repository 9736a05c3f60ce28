package sdmx

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

const utf8BOM = "\uFEFF"

// MappingEntry associates a source code with its target code. An empty
// Target is an entry an operator has not filled in yet.
type MappingEntry struct {
	Source string
	Target string
}

// MappingTable is the SOURCE/TARGET lookup for one dimension column.
type MappingTable struct {
	Column  string
	Entries []MappingEntry
}

// MappingStore loads the mapping table of a column.
type MappingStore interface {
	LoadMapping(ctx context.Context, column string) (*MappingTable, error)
}

// TemplateStore persists an empty mapping table for an operator to fill in.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, table *MappingTable) error
}

// ReadMappingTable parses a comma-separated mapping file with a header row
// containing SOURCE and TARGET. Other columns are ignored.
func ReadMappingTable(column string, r io.Reader) (*MappingTable, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMappingLookup, "failed to read mapping header").
			WithDetail("column", column)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	sourceIdx, targetIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case ColumnSource:
			sourceIdx = i
		case ColumnTarget:
			targetIdx = i
		}
	}
	if sourceIdx < 0 || targetIdx < 0 {
		return nil, errors.New(errors.ErrorTypeMappingLookup, "mapping header lacks SOURCE or TARGET").
			WithDetail("column", column).
			WithDetail("header", header)
	}

	table := &MappingTable{Column: column}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeMappingLookup, "failed to read mapping row").
				WithDetail("column", column).
				WithDetail("line", line)
		}
		table.Entries = append(table.Entries, MappingEntry{
			Source: record[sourceIdx],
			Target: record[targetIdx],
		})
	}

	return table, nil
}

// WriteCSV writes the table with a SOURCE,TARGET header.
func (m *MappingTable) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{ColumnSource, ColumnTarget}); err != nil {
		return err
	}
	for _, e := range m.Entries {
		if err := writer.Write([]string{e.Source, e.Target}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// lookup indexes the filled-in entries by source. A source listed twice
// with different targets cannot be joined without duplicating rows.
func (m *MappingTable) lookup() (map[string]string, error) {
	index := make(map[string]string, len(m.Entries))
	for _, e := range m.Entries {
		if e.Target == "" {
			continue
		}
		if prev, ok := index[e.Source]; ok && prev != e.Target {
			return nil, errors.New(errors.ErrorTypeMappingLookup, "source code mapped to several targets").
				WithDetail("column", m.Column).
				WithDetail("source", e.Source).
				WithDetail("targets", []string{prev, e.Target})
		}
		index[e.Source] = e.Target
	}
	return index, nil
}
