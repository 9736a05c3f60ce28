package sdmx

import (
	"bytes"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/json"
	stringpool "github.com/frapercan/IECA2SDMX/pkg/strings"
)

// hierarchyCell is the code path from the root of the hierarchy to the
// observed member. Codes are kept raw so a non-scalar leaf is reported as a
// malformed cell instead of a decode error.
type hierarchyCell struct {
	Codes []json.RawMessage `json:"cod"`
}

// measureCell holds one observed value. Value is nil when "val" is absent
// and the literal null when the observation is missing.
type measureCell struct {
	Value json.RawMessage `json:"val"`
}

var jsonNull = []byte("null")

func malformed(message string, row int, column string) *errors.Error {
	return errors.New(errors.ErrorTypeMalformedCell, message).
		WithDetail("row", row).
		WithDetail("column", column)
}

func decodeCell(raw json.RawMessage, row int, column string, cell interface{}) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return malformed("cell is null", row, column)
	}
	if err := json.Unmarshal(raw, cell); err != nil {
		return errors.Wrap(err, errors.ErrorTypeMalformedCell, "cell does not have the expected shape").
			WithDetail("row", row).
			WithDetail("column", column)
	}
	return nil
}

// decodeHierarchyCell returns the most specific code of a hierarchy cell.
func decodeHierarchyCell(raw json.RawMessage, row int, column string) (string, error) {
	var cell hierarchyCell
	if err := decodeCell(raw, row, column, &cell); err != nil {
		return "", err
	}
	if cell.Codes == nil {
		return "", malformed("hierarchy cell has no code list", row, column)
	}
	if len(cell.Codes) == 0 {
		return "", malformed("hierarchy code list is empty", row, column)
	}

	var leaf interface{}
	if err := json.Unmarshal(cell.Codes[len(cell.Codes)-1], &leaf); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeMalformedCell, "hierarchy leaf code is not valid JSON").
			WithDetail("row", row).
			WithDetail("column", column)
	}
	switch leaf.(type) {
	case string, float64:
		return stringpool.ValueToString(leaf), nil
	default:
		return "", malformed("hierarchy leaf code is not a scalar", row, column)
	}
}

// decodeMeasureCell returns the scalar value of a measure cell. JSON null is
// a legitimate missing observation and yields nil.
func decodeMeasureCell(raw json.RawMessage, row int, column string, normalize bool) (interface{}, error) {
	var cell measureCell
	if err := decodeCell(raw, row, column, &cell); err != nil {
		return nil, err
	}
	if cell.Value == nil {
		return nil, malformed("measure cell has no value", row, column)
	}

	var value interface{}
	if err := json.Unmarshal(cell.Value, &value); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMalformedCell, "measure value is not valid JSON").
			WithDetail("row", row).
			WithDetail("column", column)
	}

	switch v := value.(type) {
	case nil, float64, bool:
		return v, nil
	case string:
		if normalize {
			if f, ok := stringpool.NormalizeNumber(v); ok {
				return f, nil
			}
		}
		return v, nil
	default:
		return nil, malformed("measure value is not a scalar", row, column)
	}
}
