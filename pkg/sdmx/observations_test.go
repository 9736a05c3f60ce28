package sdmx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/testutil"
)

func TestNewObservationsScenario(t *testing.T) {
	obs := newObservations(t, scenarioQuery(), QueryConfig{TemporalDimension: "TIME"})

	assert.Equal(t, "1234", obs.QueryID())
	assert.Equal(t, PeriodicityMonthly, obs.Periodicity())
	assert.Equal(t, []string{"GEO", "TIME", "VAL1", "VAL2"}, obs.Wide().Columns())

	long := obs.Long()
	assert.Equal(t, []string{"GEO", "TIME", ColumnIndicator, ColumnObsValue, ColumnFreq}, long.Columns())
	require.Equal(t, 2, long.NumRows())
	assert.Equal(t, []interface{}{"ES51", "2023-01", "VAL1", 10.5, "M"}, long.Row(0))
	assert.Equal(t, []interface{}{"ES51", "2023-01", "VAL2", 20.0, "M"}, long.Row(1))
}

func TestNewObservationsAnnual(t *testing.T) {
	q := scenarioQuery()
	q.Periodicity = PeriodicityAnnual
	q.Data = []RawRow{rawRow(hc("ES", "ES51"), hc("2023"), mc("1"), mc("2"))}

	obs := newObservations(t, q, QueryConfig{TemporalDimension: "TIME", IndicatorsToDrop: []string{"VAL2"}})

	long := obs.Long()
	require.Equal(t, 1, long.NumRows())
	assert.Equal(t, []interface{}{"ES51", "2023", "VAL1", 1.0, "A"}, long.Row(0))
}

func TestNewObservationsAllMeasuresDropped(t *testing.T) {
	obs := newObservations(t, multiRowQuery(), QueryConfig{IndicatorsToDrop: []string{"VAL1", "VAL2"}})

	assert.Equal(t, 0, obs.Long().NumRows())
	assert.Equal(t, []string{"GEO", "TIME", ColumnIndicator, ColumnObsValue, ColumnFreq}, obs.Long().Columns())
	assert.Equal(t, 3, obs.Wide().NumRows())
}

func TestNewObservationsFailures(t *testing.T) {
	t.Run("unknown periodicity", func(t *testing.T) {
		q := scenarioQuery()
		q.Periodicity = PeriodicityQuarterly

		obs, err := NewObservations(q, QueryConfig{TemporalDimension: "TIME"}, testutil.TestLogger(t))
		require.Error(t, err)
		assert.Nil(t, obs)
		assert.True(t, errors.IsUnknownPeriodicity(err))
	})

	t.Run("malformed cell", func(t *testing.T) {
		q := scenarioQuery()
		q.Data = append(q.Data, rawRow(`{"cod":[]}`, hc("202302"), mc("1"), mc("2")))

		obs, err := NewObservations(q, QueryConfig{}, testutil.TestLogger(t))
		require.Error(t, err)
		assert.Nil(t, obs)
		assert.True(t, errors.IsMalformedCell(err))
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	})

	t.Run("invalid policy", func(t *testing.T) {
		_, err := NewObservations(scenarioQuery(), QueryConfig{UnmappedPolicy: "ignore"}, testutil.TestLogger(t))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}

func TestNewObservationsLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	_, err := NewObservations(scenarioQuery(), QueryConfig{IndicatorsToDrop: []string{"VAL2"}}, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("processing query observations").Len())
	decoupled := logs.FilterMessage("measures decoupled").All()
	require.Len(t, decoupled, 1)
	assert.Equal(t, []interface{}{"VAL1"}, decoupled[0].ContextMap()["indicators"])
	assert.Equal(t, "1234", decoupled[0].ContextMap()["query_id"])
}

func TestNewObservationsNilLogger(t *testing.T) {
	obs, err := NewObservations(scenarioQuery(), QueryConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, obs.Long().NumRows())
}

// bufferStore commits a file when its writer is closed.
type bufferStore struct {
	files     map[string]*bytes.Buffer
	discarded []string
	err       error
}

type bufferWriter struct {
	bytes.Buffer
	store *bufferStore
	name  string
}

func (w *bufferWriter) Close() error {
	if w.store.files == nil {
		w.store.files = make(map[string]*bytes.Buffer)
	}
	w.store.files[w.name] = &w.Buffer
	return nil
}

func (w *bufferWriter) Discard(error) error {
	w.store.discarded = append(w.store.discarded, w.name)
	return nil
}

func (s *bufferStore) Create(_ context.Context, name string) (io.WriteCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &bufferWriter{store: s, name: name}, nil
}

// closeOnlyWriter cannot discard.
type closeOnlyWriter struct {
	bytes.Buffer
	closed bool
}

func (w *closeOnlyWriter) Close() error {
	w.closed = true
	return nil
}

// pipeEncoder writes one line per row with values joined by '|'. With err
// set it writes a truncated header first.
type pipeEncoder struct{ err error }

func (pipeEncoder) Extension() string { return ".txt" }

func (e pipeEncoder) Encode(w io.Writer, t *Table) error {
	if e.err != nil {
		fmt.Fprint(w, "GEO|TIME|INDICATOR\nES51|2023-")
		return e.err
	}
	return t.Each(func(_ int, row []interface{}) error {
		for j, v := range row {
			if j > 0 {
				fmt.Fprint(w, "|")
			}
			fmt.Fprint(w, v)
		}
		_, err := fmt.Fprintln(w)
		return err
	})
}

func TestObservationsSave(t *testing.T) {
	obs := newObservations(t, scenarioQuery(), QueryConfig{TemporalDimension: "TIME"})
	store := &bufferStore{}

	name, err := obs.Save(testutil.TestContext(t), store, pipeEncoder{})
	require.NoError(t, err)

	assert.Equal(t, "1234.txt", name)
	assert.Equal(t, "ES51|2023-01|VAL1|10.5|M\nES51|2023-01|VAL2|20|M\n", store.files[name].String())
}

func TestObservationsSaveErrors(t *testing.T) {
	obs := newObservations(t, scenarioQuery(), QueryConfig{})

	_, err := obs.Save(testutil.TestContext(t), &bufferStore{err: fmt.Errorf("disk full")}, pipeEncoder{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	_, err = obs.Save(testutil.TestContext(t), &bufferStore{}, pipeEncoder{err: fmt.Errorf("boom")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestObservationsSaveDiscardsPartialOutput(t *testing.T) {
	obs := newObservations(t, scenarioQuery(), QueryConfig{})
	store := &bufferStore{}

	name, err := obs.Save(testutil.TestContext(t), store, pipeEncoder{err: fmt.Errorf("encoder failed mid-row")})
	require.Error(t, err)
	assert.Empty(t, name)
	assert.Empty(t, store.files)
	assert.Equal(t, []string{"1234.txt"}, store.discarded)
}

func TestDiscardOutputClosesPlainWriters(t *testing.T) {
	w := &closeOnlyWriter{}
	require.NoError(t, DiscardOutput(w, fmt.Errorf("boom")))
	assert.True(t, w.closed)

	bw := &bufferWriter{store: &bufferStore{}, name: "q.txt"}
	require.NoError(t, DiscardOutput(bw, fmt.Errorf("boom")))
	assert.Empty(t, bw.store.files)
	assert.Equal(t, []string{"q.txt"}, bw.store.discarded)
}
