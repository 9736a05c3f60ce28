package sdmx

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frapercan/IECA2SDMX/pkg/json"
	"github.com/frapercan/IECA2SDMX/pkg/testutil"
)

func rawRow(cells ...string) RawRow {
	row := make(RawRow, len(cells))
	for i, c := range cells {
		row[i] = json.RawMessage(c)
	}
	return row
}

var (
	hc = testutil.HierarchyCell
	mc = testutil.MeasureCell
)

func geoTimeHierarchies() []Hierarchy {
	return []Hierarchy{{Alias: "GEO"}, {Alias: "TIME"}}
}

func twoMeasures() []Measure {
	return []Measure{{Description: "VAL1"}, {Description: "VAL2"}}
}

// scenarioQuery is the single-row monthly query used across tests.
func scenarioQuery() *Query {
	return &Query{
		ID:          "1234",
		Periodicity: PeriodicityMonthly,
		Hierarchies: geoTimeHierarchies(),
		Measures:    twoMeasures(),
		Data: []RawRow{
			rawRow(hc("ES", "ES51"), hc("202301"), mc("10.5"), mc("20.0")),
		},
	}
}

// multiRowQuery has three observations over two regions.
func multiRowQuery() *Query {
	return &Query{
		ID:          "5678",
		Periodicity: PeriodicityMonthly,
		Hierarchies: geoTimeHierarchies(),
		Measures:    twoMeasures(),
		Data: []RawRow{
			rawRow(hc("ES", "ES51"), hc("202301"), mc("1"), mc("2")),
			rawRow(hc("ES", "ES61"), hc("202301"), mc("3"), mc("4")),
			rawRow(hc("ES", "ES51"), hc("202302"), mc("5"), mc("6")),
		},
	}
}

func newObservations(t *testing.T, q *Query, cfg QueryConfig) *Observations {
	t.Helper()
	obs, err := NewObservations(q, cfg, testutil.TestLogger(t))
	require.NoError(t, err)
	return obs
}

type memoryMappings map[string]*MappingTable

func (m memoryMappings) LoadMapping(_ context.Context, column string) (*MappingTable, error) {
	t, ok := m[column]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return t, nil
}

type memoryTemplates struct {
	saved []*MappingTable
	err   error
}

func (m *memoryTemplates) SaveTemplate(_ context.Context, t *MappingTable) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, t)
	return nil
}
