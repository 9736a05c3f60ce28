package errors

import (
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeFile, "unused"))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeMalformedCell, "empty code list")
	outer := Wrap(inner, ErrorTypeData, "build failed")

	require.NotNil(t, outer)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestHasTypeWalksChain(t *testing.T) {
	err := Wrap(Wrap(io.EOF, ErrorTypeMappingLookup, "read"), ErrorTypeData, "map")

	assert.True(t, IsType(err, ErrorTypeData))
	assert.False(t, IsType(err, ErrorTypeMappingLookup))
	assert.True(t, IsMappingLookup(err))
	assert.False(t, IsMalformedCell(err))
	assert.False(t, HasType(io.EOF, ErrorTypeData))
}

func TestNewfAndDetails(t *testing.T) {
	err := Newf(ErrorTypeUnknownPeriodicity, "periodicity %q", "Semanal").
		WithDetail("known", []string{"Anual", "Mensual"})

	assert.Equal(t, `unknown_periodicity: periodicity "Semanal"`, err.Error())
	assert.Equal(t, []string{"Anual", "Mensual"}, err.Details["known"])
	assert.True(t, IsUnknownPeriodicity(err))
	assert.NotEmpty(t, err.Stack)
}
