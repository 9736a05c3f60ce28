package formats

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frapercan/IECA2SDMX/pkg/compression"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

func observationTable(t *testing.T) *sdmx.Table {
	t.Helper()
	table, err := sdmx.NewTable(
		[]string{"GEO", "TIME", "INDICATOR", "OBS_VALUE", "FREQ"},
		[][]interface{}{
			{"ES51", "2023-01", "VAL1", 10.5, "M"},
			{"ES51", "2023-01", "VAL2", nil, "M"},
		},
	)
	require.NoError(t, err)
	return table
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		extension string
	}{
		{"default is csv", Options{}, ".csv"},
		{"jsonl", Options{Format: JSONL}, ".jsonl"},
		{"compressed csv", Options{Format: CSV, Compression: compression.Zstd}, ".csv.zst"},
		{"compressed jsonl", Options{Format: JSONL, Compression: compression.Gzip}, ".jsonl.gz"},
		{"parquet keeps its extension", Options{Format: Parquet, Compression: compression.Zstd}, ".parquet"},
		{"avro", Options{Format: Avro, Compression: compression.Snappy}, ".avro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := New(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.extension, enc.Extension())
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New(Options{Format: "xlsx"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(Options{Format: CSV, Delimiter: ";;"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(Options{Format: CSV, Compression: "brotli"})
	require.Error(t, err)
}

func TestCSVEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := &CSVEncoder{Delimiter: ';'}

	require.NoError(t, enc.Encode(&buf, observationTable(t)))
	assert.Equal(t,
		"GEO;TIME;INDICATOR;OBS_VALUE;FREQ\n"+
			"ES51;2023-01;VAL1;10.5;M\n"+
			"ES51;2023-01;VAL2;;M\n",
		buf.String())
}

func TestCSVEncoderCustomDelimiter(t *testing.T) {
	var buf bytes.Buffer
	enc, err := New(Options{Format: CSV, Delimiter: "|"})
	require.NoError(t, err)

	require.NoError(t, enc.Encode(&buf, observationTable(t)))
	assert.Contains(t, buf.String(), "ES51|2023-01|VAL1|10.5|M\n")
}

func TestJSONLEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := &JSONLEncoder{}

	require.NoError(t, enc.Encode(&buf, observationTable(t)))
	assert.Equal(t,
		`{"FREQ":"M","GEO":"ES51","INDICATOR":"VAL1","OBS_VALUE":10.5,"TIME":"2023-01"}`+"\n"+
			`{"FREQ":"M","GEO":"ES51","INDICATOR":"VAL2","OBS_VALUE":null,"TIME":"2023-01"}`+"\n",
		buf.String())
}

func TestCompressedRoundTrip(t *testing.T) {
	for _, alg := range []compression.Algorithm{compression.Gzip, compression.Snappy, compression.LZ4, compression.Zstd, compression.S2} {
		t.Run(string(alg), func(t *testing.T) {
			var plain, packed bytes.Buffer
			require.NoError(t, (&CSVEncoder{Delimiter: ';'}).Encode(&plain, observationTable(t)))

			enc := &Compressed{Encoder: &CSVEncoder{Delimiter: ';'}, Algorithm: alg, Level: compression.Default}
			require.NoError(t, enc.Encode(&packed, observationTable(t)))

			out, err := compression.Decompress(packed.Bytes(), alg)
			require.NoError(t, err)
			assert.Equal(t, plain.String(), string(out))
		})
	}
}

func TestColumnKinds(t *testing.T) {
	table, err := sdmx.NewTable(
		[]string{"A", "B", "C", "D"},
		[][]interface{}{
			{"x", 1.0, nil, 2.0},
			{"y", nil, nil, "3"},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, []columnKind{kindString, kindDouble, kindString, kindString}, columnKinds(table))
}

func TestParquetEncoder(t *testing.T) {
	for _, alg := range []compression.Algorithm{compression.None, compression.Snappy, compression.Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			enc := &ParquetEncoder{Compression: alg}
			require.NoError(t, enc.Encode(&buf, observationTable(t)))

			rdr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			defer rdr.Close()

			fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
			require.NoError(t, err)

			tbl, err := fr.ReadTable(context.Background())
			require.NoError(t, err)
			defer tbl.Release()

			assert.Equal(t, int64(2), tbl.NumRows())
			schema := tbl.Schema()
			require.Equal(t, 5, schema.NumFields())
			assert.Equal(t, "GEO", schema.Field(0).Name)
			assert.Equal(t, arrow.STRING, schema.Field(0).Type.ID())
			assert.Equal(t, arrow.FLOAT64, schema.Field(3).Type.ID())

			geo := tbl.Column(0).Data().Chunk(0).(*array.String)
			assert.Equal(t, "ES51", geo.Value(0))

			values := tbl.Column(3).Data().Chunk(0).(*array.Float64)
			assert.Equal(t, 10.5, values.Value(0))
			assert.True(t, values.IsNull(1))
		})
	}
}

func TestAvroEncoder(t *testing.T) {
	for _, alg := range []compression.Algorithm{compression.None, compression.Gzip, compression.Snappy} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			enc := &AvroEncoder{Compression: alg}
			require.NoError(t, enc.Encode(&buf, observationTable(t)))

			ocfr, err := goavro.NewOCFReader(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)

			var records []map[string]interface{}
			for ocfr.Scan() {
				datum, err := ocfr.Read()
				require.NoError(t, err)
				records = append(records, datum.(map[string]interface{}))
			}
			require.NoError(t, ocfr.Err())
			require.Len(t, records, 2)

			assert.Equal(t, map[string]interface{}{"string": "ES51"}, records[0]["GEO"])
			assert.Equal(t, map[string]interface{}{"double": 10.5}, records[0]["OBS_VALUE"])
			assert.Nil(t, records[1]["OBS_VALUE"])
		})
	}
}

func TestAvroFieldNames(t *testing.T) {
	names, err := avroFieldNames([]string{"GEO", "OBS VALUE", "2023"})
	require.NoError(t, err)
	assert.Equal(t, []string{"GEO", "OBS_VALUE", "_2023"}, names)

	_, err = avroFieldNames([]string{"A-B", "A_B"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
