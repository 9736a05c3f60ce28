// Package errors provides structured error handling for IECA2SDMX.
//
// Every error that crosses a package boundary is an *Error carrying a
// category (ErrorType), a message, an optional cause and key-value details.
// The reshaping pipeline reports its three failure kinds through dedicated
// types:
//
//   - ErrorTypeMalformedCell: a hierarchy or measure cell (or a temporal
//     value) does not have the expected shape; the query's table is not built.
//   - ErrorTypeUnknownPeriodicity: the periodicity label has no frequency code.
//   - ErrorTypeMappingLookup: a mapping table is missing, malformed or does
//     not resolve a code under the strict policy.
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/frapercan/IECA2SDMX/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeMalformedCell represents a raw cell without the expected structure
	ErrorTypeMalformedCell ErrorType = "malformed_cell"
	// ErrorTypeUnknownPeriodicity represents a periodicity outside the frequency vocabulary
	ErrorTypeUnknownPeriodicity ErrorType = "unknown_periodicity"
	// ErrorTypeMappingLookup represents a missing or unusable mapping table
	ErrorTypeMappingLookup ErrorType = "mapping_lookup"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the outermost structured error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// HasType reports whether any structured error in the chain has the given type
func HasType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsMalformedCell reports whether err (or a cause) is a malformed cell error
func IsMalformedCell(err error) bool {
	return HasType(err, ErrorTypeMalformedCell)
}

// IsUnknownPeriodicity reports whether err (or a cause) is an unknown periodicity error
func IsUnknownPeriodicity(err error) bool {
	return HasType(err, ErrorTypeUnknownPeriodicity)
}

// IsMappingLookup reports whether err (or a cause) is a mapping lookup error
func IsMappingLookup(err error) bool {
	return HasType(err, ErrorTypeMappingLookup)
}

// Is and As are re-exported so callers do not need a second errors import.
var (
	Is = errors.Is
	As = errors.As
)

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
