package sdmx

import (
	"github.com/frapercan/IECA2SDMX/pkg/json"
)

// Column names of the long table.
const (
	ColumnIndicator = "INDICATOR"
	ColumnObsValue  = "OBS_VALUE"
	ColumnFreq      = "FREQ"
)

// Column names of a mapping table.
const (
	ColumnSource = "SOURCE"
	ColumnTarget = "TARGET"
)

// Hierarchy describes one dimension of a query. Alias is the output column.
type Hierarchy struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Alias       string `json:"alias" yaml:"alias"`
	Description string `json:"des,omitempty" yaml:"des,omitempty"`
}

// Measure describes one reported quantity. Description is used both as the
// wide-table column and as the INDICATOR value.
type Measure struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Description string `json:"des" yaml:"des"`
	Format      string `json:"format,omitempty" yaml:"format,omitempty"`
}

// RawRow is one positional row of a query result: hierarchy cells in
// hierarchy order followed by measure cells in measure order.
type RawRow []json.RawMessage

// Query is the envelope of a stored query result.
type Query struct {
	ID          string      `json:"id"`
	Periodicity string      `json:"periodicity"`
	Hierarchies []Hierarchy `json:"hierarchies"`
	Measures    []Measure   `json:"measures"`
	Data        []RawRow    `json:"data"`
}

// UnmappedPolicy decides what happens to a code that has no target in its
// mapping table.
type UnmappedPolicy string

const (
	// UnmappedMissing leaves the value missing (nil) and reports the code.
	UnmappedMissing UnmappedPolicy = "missing"
	// UnmappedError fails the mapping step.
	UnmappedError UnmappedPolicy = "error"
	// UnmappedPassthrough keeps the source code and reports it.
	UnmappedPassthrough UnmappedPolicy = "passthrough"
)

// Valid reports whether p is a known policy. The empty policy is valid and
// behaves as UnmappedMissing.
func (p UnmappedPolicy) Valid() bool {
	switch p {
	case "", UnmappedMissing, UnmappedError, UnmappedPassthrough:
		return true
	}
	return false
}

// QueryConfig holds the per-query processing settings.
type QueryConfig struct {
	// TemporalDimension names the time column. Empty or absent from the
	// table means no temporal normalization.
	TemporalDimension string
	// IndicatorsToDrop lists measures excluded from the long table.
	IndicatorsToDrop []string
	// DimensionsToMap lists the columns eligible for code mapping.
	DimensionsToMap []string
	// UnmappedPolicy applies to codes without a target.
	UnmappedPolicy UnmappedPolicy
	// NormalizeNumbers parses locale-formatted string measure values.
	NormalizeNumbers bool
}

func aliasesOf(hierarchies []Hierarchy) []string {
	out := make([]string, len(hierarchies))
	for i, h := range hierarchies {
		out[i] = h.Alias
	}
	return out
}

func descriptionsOf(measures []Measure) []string {
	out := make([]string, len(measures))
	for i, m := range measures {
		out[i] = m.Description
	}
	return out
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
