// Package formats encodes observation tables for storage. Every encoder
// implements sdmx.TableEncoder.
//
// CSV and JSON lines are compressed as a whole stream (the extension gains
// the codec suffix, e.g. ".csv.zst"). Parquet and Avro compress internally
// and keep their own extension.
package formats

import (
	"github.com/frapercan/IECA2SDMX/pkg/compression"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
	stringpool "github.com/frapercan/IECA2SDMX/pkg/strings"
)

// Format names an output encoding.
type Format string

const (
	CSV     Format = "csv"
	JSONL   Format = "jsonl"
	Parquet Format = "parquet"
	Avro    Format = "avro"
)

// DefaultDelimiter separates CSV fields.
const DefaultDelimiter = ';'

// Options selects and configures an encoder.
type Options struct {
	Format      Format
	Delimiter   string
	Compression compression.Algorithm
	Level       compression.Level
}

// New returns the encoder described by opts.
func New(opts Options) (sdmx.TableEncoder, error) {
	if opts.Level == 0 {
		opts.Level = compression.Default
	}

	switch opts.Format {
	case CSV, "":
		delim := DefaultDelimiter
		if opts.Delimiter != "" {
			r := []rune(opts.Delimiter)
			if len(r) != 1 {
				return nil, errors.New(errors.ErrorTypeConfig, "delimiter must be a single character").
					WithDetail("delimiter", opts.Delimiter)
			}
			delim = r[0]
		}
		return withCompression(&CSVEncoder{Delimiter: delim}, opts)
	case JSONL:
		return withCompression(&JSONLEncoder{}, opts)
	case Parquet:
		return &ParquetEncoder{Compression: opts.Compression}, nil
	case Avro:
		return &AvroEncoder{Compression: opts.Compression}, nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported output format").
			WithDetail("format", string(opts.Format))
	}
}

func withCompression(enc sdmx.TableEncoder, opts Options) (sdmx.TableEncoder, error) {
	if opts.Compression == "" || opts.Compression == compression.None {
		return enc, nil
	}
	if _, err := compression.Parse(string(opts.Compression)); err != nil {
		return nil, err
	}
	return &Compressed{Encoder: enc, Algorithm: opts.Compression, Level: opts.Level}, nil
}

// columnKind is the storage type of a column in typed formats.
type columnKind int

const (
	kindString columnKind = iota
	kindDouble
)

// columnKinds types a column as double when it has at least one value and
// every non-missing value is a float64, and as string otherwise.
func columnKinds(t *sdmx.Table) []columnKind {
	kinds := make([]columnKind, t.NumColumns())
	seen := make([]bool, t.NumColumns())
	numeric := make([]bool, t.NumColumns())
	for j := range numeric {
		numeric[j] = true
	}

	_ = t.Each(func(_ int, row []interface{}) error {
		for j, v := range row {
			if v == nil {
				continue
			}
			seen[j] = true
			if _, ok := v.(float64); !ok {
				numeric[j] = false
			}
		}
		return nil
	})

	for j := range kinds {
		if seen[j] && numeric[j] {
			kinds[j] = kindDouble
		}
	}
	return kinds
}

// cellText renders a cell for text formats.
func cellText(v interface{}) string {
	return stringpool.ValueToString(v)
}
