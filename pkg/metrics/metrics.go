// Package metrics exposes Prometheus metrics for the conversion runner.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewCollector(reg)
//
//	timer := metrics.NewTimer()
//	obs, err := sdmx.NewObservations(q, cfg, log)
//	c.ObserveStage(metrics.StageBuild, timer.Stop())
//
//	c.QueryProcessed(metrics.StatusSuccess)
//	c.RowsProduced(obs.Long().NumRows())
//
// # Metric Types
//
// Counter: queries processed, rows produced, unmapped codes
// Histogram: per-stage latency in seconds
// Gauge: rows per second over the last run
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ieca2sdmx"

// Query outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Pipeline stages timed by the runner.
const (
	StageLoad      = "load"
	StageBuild     = "build"
	StageMap       = "map"
	StageSave      = "save"
	StageTemplates = "templates"
	StageCopy      = "copy"
)

// Collector owns the runner's metrics. Each collector registers its metrics
// with the registerer it was built with.
type Collector struct {
	queriesProcessed *prometheus.CounterVec
	rowsProduced     prometheus.Counter
	stageLatency     *prometheus.HistogramVec
	unmappedCodes    *prometheus.CounterVec
	throughput       prometheus.Gauge
	startTime        time.Time
}

// NewCollector registers the runner metrics with reg. A nil reg uses the
// default Prometheus registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		queriesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_processed_total",
				Help:      "Total number of queries processed",
			},
			[]string{"status"},
		),
		rowsProduced: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_produced_total",
				Help:      "Total number of observation rows produced",
			},
		),
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds",
				Buckets: []float64{
					0.001, // 1ms - in-memory reshaping
					0.01,  // 10ms
					0.1,   // 100ms - local storage
					0.5,
					1, // 1s - object storage round trips
					5,
					30, // 30s - large uploads
				},
			},
			[]string{"stage"},
		),
		unmappedCodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unmapped_codes_total",
				Help:      "Distinct codes without a mapping entry",
			},
			[]string{"column"},
		),
		throughput: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "throughput_rows_per_second",
				Help:      "Rows produced per second over the last run",
			},
		),
		startTime: time.Now(),
	}
}

// StartTime returns when the collector was created.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// QueryProcessed counts one query with the given outcome.
func (c *Collector) QueryProcessed(status string) {
	c.queriesProcessed.WithLabelValues(status).Inc()
}

// RowsProduced adds n observation rows.
func (c *Collector) RowsProduced(n int) {
	c.rowsProduced.Add(float64(n))
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// UnmappedCodes adds n unmapped codes for column.
func (c *Collector) UnmappedCodes(column string, n int) {
	c.unmappedCodes.WithLabelValues(column).Add(float64(n))
}

// Timer measures an operation from its creation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since the timer was created. It can be
// called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker counts rows over a window and publishes rows per
// second. Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	gauge     prometheus.Gauge
}

// NewThroughputTracker returns a tracker publishing to the collector's
// throughput gauge.
func (c *Collector) NewThroughputTracker() *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now(), gauge: c.throughput}
}

// Increment adds n to the row count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns rows per second since the last reset, publishes it and
// starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()
	t.gauge.Set(throughput)

	return throughput
}
