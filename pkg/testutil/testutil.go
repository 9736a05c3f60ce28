// Package testutil provides testing utilities for IECA2SDMX
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout that is
// cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// HierarchyCell renders a raw hierarchy cell with the given code path.
func HierarchyCell(codes ...string) string {
	out := `{"cod":[`
	for i, c := range codes {
		if i > 0 {
			out += ","
		}
		out += `"` + c + `"`
	}
	return out + `]}`
}

// MeasureCell renders a raw measure cell around a JSON scalar literal.
func MeasureCell(literal string) string {
	return `{"val":` + literal + `}`
}
