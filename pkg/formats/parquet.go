package formats

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/frapercan/IECA2SDMX/pkg/compression"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

// ParquetEncoder writes the table as a single-row-group Parquet file.
// Columns whose values are all numbers are stored as nullable doubles,
// every other column as nullable strings.
type ParquetEncoder struct {
	Compression compression.Algorithm
}

// Extension implements sdmx.TableEncoder.
func (e *ParquetEncoder) Extension() string { return ".parquet" }

// Encode implements sdmx.TableEncoder.
func (e *ParquetEncoder) Encode(w io.Writer, t *sdmx.Table) error {
	kinds := columnKinds(t)
	schema := arrowSchema(t.Columns(), kinds)

	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	_ = t.Each(func(_ int, row []interface{}) error {
		for j, v := range row {
			appendValue(builder.Field(j), v)
		}
		return nil
	})

	record := builder.NewRecord()
	defer record.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(parquetCodec(e.Compression)),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool))

	// The file writer closes its sink; the caller owns w.
	fw, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{w}, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Parquet writer")
	}
	if err := fw.Write(record); err != nil {
		_ = fw.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Parquet record batch")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Parquet writer")
	}
	return nil
}

func arrowSchema(columns []string, kinds []columnKind) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		var dt arrow.DataType = arrow.BinaryTypes.String
		if kinds[i] == kindDouble {
			dt = arrow.PrimitiveTypes.Float64
		}
		fields[i] = arrow.Field{Name: c, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func appendValue(b array.Builder, v interface{}) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch fb := b.(type) {
	case *array.Float64Builder:
		fb.Append(v.(float64))
	case *array.StringBuilder:
		fb.Append(cellText(v))
	default:
		b.AppendNull()
	}
}

func parquetCodec(a compression.Algorithm) compress.Compression {
	switch a {
	case compression.None:
		return compress.Codecs.Uncompressed
	case compression.Gzip:
		return compress.Codecs.Gzip
	case compression.Zstd:
		return compress.Codecs.Zstd
	case compression.LZ4:
		return compress.Codecs.Lz4Raw
	default:
		return compress.Codecs.Snappy
	}
}
