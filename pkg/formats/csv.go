package formats

import (
	"bufio"
	"encoding/csv"
	"io"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

// CSVEncoder writes a header row followed by one row per observation.
// Missing values are empty fields.
type CSVEncoder struct {
	Delimiter rune
}

// Extension implements sdmx.TableEncoder.
func (e *CSVEncoder) Extension() string { return ".csv" }

// Encode implements sdmx.TableEncoder.
func (e *CSVEncoder) Encode(w io.Writer, t *sdmx.Table) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	cw := csv.NewWriter(bw)
	if e.Delimiter != 0 {
		cw.Comma = e.Delimiter
	}

	if err := cw.Write(t.Columns()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write CSV header")
	}

	record := make([]string, t.NumColumns())
	err := t.Each(func(i int, row []interface{}) error {
		for j, v := range row {
			record[j] = cellText(v)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write CSV row").
				WithDetail("row", i)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush CSV")
	}
	return bw.Flush()
}
