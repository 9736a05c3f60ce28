// Package strings provides the value formatting helpers shared by the
// table encoders, the mapping store and the error package.
package strings

import (
	"fmt"
	"strconv"
	stdstrings "strings"
	"unsafe"
)

// BytesToString converts a byte slice to a string without copying.
// The byte slice must not be modified afterwards.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Sprintf is fmt.Sprintf with a fast path for argument-free formats.
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// ValueToString converts a table cell to its textual form. A nil cell is
// rendered as the empty string, matching how missing values are written
// to delimiter-separated files.
func ValueToString(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}

// NormalizeNumber rewrites a locale-formatted number ("10,5", "3,2%") into
// the dotted form and parses it. ok is false when the cleaned text is not
// a number.
func NormalizeNumber(s string) (f float64, ok bool) {
	cleaned := stdstrings.ReplaceAll(s, ",", ".")
	cleaned = stdstrings.ReplaceAll(cleaned, "%", "")
	cleaned = stdstrings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
