package formats

import (
	"io"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/json"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

// JSONLEncoder writes one JSON object per observation, keyed by column.
type JSONLEncoder struct{}

// Extension implements sdmx.TableEncoder.
func (e *JSONLEncoder) Extension() string { return ".jsonl" }

// Encode implements sdmx.TableEncoder.
func (e *JSONLEncoder) Encode(w io.Writer, t *sdmx.Table) error {
	enc := json.NewLinesEncoder(w)
	defer enc.Close()

	columns := t.Columns()
	record := make(map[string]interface{}, len(columns))

	return t.Each(func(i int, row []interface{}) error {
		for j, c := range columns {
			record[c] = row[j]
		}
		if err := enc.Encode(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write JSON line").
				WithDetail("row", i)
		}
		return nil
	})
}
