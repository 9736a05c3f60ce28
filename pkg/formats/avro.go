package formats

import (
	"io"
	"regexp"

	"github.com/linkedin/goavro/v2"

	"github.com/frapercan/IECA2SDMX/pkg/compression"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/json"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

const avroBlockSize = 1000

var invalidAvroName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// AvroEncoder writes the table as an Avro object container file with one
// record per observation. Field names are the column names with characters
// outside [A-Za-z0-9_] replaced by '_'.
type AvroEncoder struct {
	Compression compression.Algorithm
}

// Extension implements sdmx.TableEncoder.
func (e *AvroEncoder) Extension() string { return ".avro" }

// Encode implements sdmx.TableEncoder.
func (e *AvroEncoder) Encode(w io.Writer, t *sdmx.Table) error {
	columns := t.Columns()
	kinds := columnKinds(t)

	names, err := avroFieldNames(columns)
	if err != nil {
		return err
	}
	schema, err := avroSchema(names, kinds)
	if err != nil {
		return err
	}

	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro codec")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: avroCompression(e.Compression),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Avro writer")
	}

	block := make([]interface{}, 0, avroBlockSize)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		if err := ocf.Append(block); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to append Avro block")
		}
		block = block[:0]
		return nil
	}

	err = t.Each(func(_ int, row []interface{}) error {
		native := make(map[string]interface{}, len(row))
		for j, v := range row {
			native[names[j]] = avroValue(v, kinds[j])
		}
		block = append(block, native)
		if len(block) == avroBlockSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

func avroFieldNames(columns []string) ([]string, error) {
	names := make([]string, len(columns))
	seen := make(map[string]string, len(columns))
	for i, c := range columns {
		n := invalidAvroName.ReplaceAllString(c, "_")
		if n == "" || (n[0] >= '0' && n[0] <= '9') {
			n = "_" + n
		}
		if prev, dup := seen[n]; dup {
			return nil, errors.New(errors.ErrorTypeValidation, "columns collide as Avro field names").
				WithDetail("columns", []string{prev, c}).
				WithDetail("field", n)
		}
		seen[n] = c
		names[i] = n
	}
	return names, nil
}

type avroField struct {
	Name    string      `json:"name"`
	Type    []string    `json:"type"`
	Default interface{} `json:"default"`
}

func avroSchema(names []string, kinds []columnKind) (string, error) {
	fields := make([]avroField, len(names))
	for i, n := range names {
		typ := "string"
		if kinds[i] == kindDouble {
			typ = "double"
		}
		fields[i] = avroField{Name: n, Type: []string{"null", typ}}
	}

	schema, err := json.Marshal(map[string]interface{}{
		"type":      "record",
		"name":      "Observation",
		"namespace": "ieca2sdmx",
		"fields":    fields,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to build Avro schema")
	}
	return string(schema), nil
}

func avroValue(v interface{}, kind columnKind) interface{} {
	if v == nil {
		return nil
	}
	if kind == kindDouble {
		return goavro.Union("double", v.(float64))
	}
	return goavro.Union("string", cellText(v))
}

func avroCompression(a compression.Algorithm) string {
	switch a {
	case compression.None:
		return goavro.CompressionNullLabel
	case compression.Gzip:
		return goavro.CompressionDeflateLabel
	default:
		return goavro.CompressionSnappyLabel
	}
}
