package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite gives every test a fresh local storage root.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	root      string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()
}

// SetupTest creates the storage root for the next test.
func (s *IntegrationTestSuite) SetupTest() {
	s.root = s.T().TempDir()
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the test context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// Root returns the storage root of the current test.
func (s *IntegrationTestSuite) Root() string {
	return s.root
}

// Path joins slash-separated name onto the root.
func (s *IntegrationTestSuite) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// WriteFile creates name under the root, with parent directories.
func (s *IntegrationTestSuite) WriteFile(name, content string) string {
	path := s.Path(name)
	require.NoError(s.T(), os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ReadFile returns the content of name under the root.
func (s *IntegrationTestSuite) ReadFile(name string) string {
	data, err := os.ReadFile(s.Path(name))
	require.NoError(s.T(), err)
	return string(data)
}

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// QueryFixture describes a query envelope with GEO and TIME hierarchies and
// measures VAL1 and VAL2.
type QueryFixture struct {
	ID          string
	Periodicity string
	Rows        [][]string
}

// GeoTimeQuery returns a monthly fixture with the given rows.
func GeoTimeQuery(id string, rows ...[]string) QueryFixture {
	return QueryFixture{ID: id, Periodicity: "Mensual", Rows: rows}
}

// Row renders one data row: a GEO code under ES, a period and two measure
// literals.
func Row(geo, period, val1, val2 string) []string {
	return []string{HierarchyCell("ES", geo), HierarchyCell(period), MeasureCell(val1), MeasureCell(val2)}
}

// JSON renders the envelope as stored in the queries directory.
func (q QueryFixture) JSON() string {
	rows := make([]string, len(q.Rows))
	for i, r := range q.Rows {
		rows[i] = "[" + strings.Join(r, ",") + "]"
	}
	return `{"id":"` + q.ID + `","periodicity":"` + q.Periodicity + `",` +
		`"hierarchies":[{"id":"h1","alias":"GEO","des":"Territorio"},{"id":"h2","alias":"TIME","des":"Periodo"}],` +
		`"measures":[{"id":"m1","des":"VAL1"},{"id":"m2","des":"VAL2"}],` +
		`"data":[` + strings.Join(rows, ",") + `]}`
}

// WriteQueries stores numQueries envelopes of rowsPerQuery rows in dir and
// returns their ids.
func WriteQueries(t *testing.T, dir string, numQueries, rowsPerQuery int) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	ids := make([]string, 0, numQueries)
	for i := 0; i < numQueries; i++ {
		id := fmt.Sprintf("%d", 1000+i)
		q := GeoTimeQuery(id, SyntheticRows(rowsPerQuery)...)
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(q.JSON()), 0o600))
		ids = append(ids, id)
	}
	return ids
}

// SyntheticRows returns n distinct monthly rows across regions.
func SyntheticRows(n int) [][]string {
	rows := make([][]string, n)
	for j := 0; j < n; j++ {
		rows[j] = Row(
			fmt.Sprintf("ES%02d", j%50),
			fmt.Sprintf("%04d%02d", 2000+j/600, (j/50)%12+1),
			fmt.Sprintf("%.2f", float64(j)*1.23),
			fmt.Sprintf("%d", j),
		)
	}
	return rows
}

// PerformanceTest provides utilities for performance testing
type PerformanceTest struct {
	t         *testing.T
	name      string
	threshold struct {
		minThroughput float64 // rows/sec
		maxMemory     int64   // bytes
	}
}

// NewPerformanceTest creates a new performance test
func NewPerformanceTest(t *testing.T, name string) *PerformanceTest {
	return &PerformanceTest{
		t:    t,
		name: name,
	}
}

// WithThroughputTarget sets minimum throughput requirement
func (p *PerformanceTest) WithThroughputTarget(rowsPerSec float64) *PerformanceTest {
	p.threshold.minThroughput = rowsPerSec
	return p
}

// WithMemoryTarget sets maximum memory usage
func (p *PerformanceTest) WithMemoryTarget(maxBytes int64) *PerformanceTest {
	p.threshold.maxMemory = maxBytes
	return p
}

// Run executes fn and checks its throughput and memory against the targets.
func (p *PerformanceTest) Run(fn func() (rowsProcessed int64, duration time.Duration)) {
	p.t.Helper()

	initialMem := CaptureMemoryProfile()
	rows, duration := fn()
	finalMem := CaptureMemoryProfile()

	if rows == 0 || duration <= 0 {
		p.t.Logf("Performance Test: %s processed nothing", p.name)
		return
	}

	throughput := float64(rows) / duration.Seconds()
	memoryUsed := int64(finalMem.TotalAlloc) - int64(initialMem.TotalAlloc) //nolint:gosec // counters fit in int64

	p.t.Logf("Performance Test: %s", p.name)
	p.t.Logf("  Rows: %d", rows)
	p.t.Logf("  Duration: %v", duration)
	p.t.Logf("  Throughput: %.0f rows/sec", throughput)
	p.t.Logf("  Allocated: %s", formatBytes(memoryUsed))

	if p.threshold.minThroughput > 0 && throughput < p.threshold.minThroughput {
		p.t.Errorf("Throughput %.0f rows/sec below target %.0f rows/sec",
			throughput, p.threshold.minThroughput)
	}

	if p.threshold.maxMemory > 0 && memoryUsed > p.threshold.maxMemory {
		p.t.Errorf("Memory usage %s exceeds target %s",
			formatBytes(memoryUsed), formatBytes(p.threshold.maxMemory))
	}
}

// MemoryProfile captures memory statistics
type MemoryProfile struct {
	AllocBytes uint64
	TotalAlloc uint64
	HeapInuse  uint64
}

// CaptureMemoryProfile captures current memory profile
func CaptureMemoryProfile() *MemoryProfile {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &MemoryProfile{
		AllocBytes: m.Alloc,
		TotalAlloc: m.TotalAlloc,
		HeapInuse:  m.HeapInuse,
	}
}

// formatBytes formats bytes into human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
