// Package runner converts a batch of stored IECA queries into SDMX
// observation files.
//
// For every query the runner loads the envelope from the queries directory,
// builds the observation table, optionally writes mapping templates and
// applies code mappings, saves the encoded table to the data directory and
// optionally copies it into PostgreSQL. Queries run concurrently, bounded by
// the configured worker count, each with its own Observations and timeout.
package runner

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/frapercan/IECA2SDMX/pkg/config"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/json"
	"github.com/frapercan/IECA2SDMX/pkg/logger"
	"github.com/frapercan/IECA2SDMX/pkg/metrics"
	"github.com/frapercan/IECA2SDMX/pkg/observability"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
	"github.com/frapercan/IECA2SDMX/pkg/storage"
)

const queryExtension = ".json"

// TableSink receives every converted table, e.g. a database.
type TableSink interface {
	Copy(ctx context.Context, t *sdmx.Table) (int64, error)
}

// Stages selects the optional steps run for each query.
type Stages struct {
	// Map replaces codes through the mapping tables.
	Map bool
	// Templates writes one mapping template per mappable column.
	Templates bool
	// SkipSave leaves the data directory untouched.
	SkipSave bool
}

// Params wires a Runner. Config and Backend are required, Encoder is
// required unless SkipSave is set.
type Params struct {
	Config  *config.Config
	Backend storage.Backend
	Encoder sdmx.TableEncoder
	Sink    TableSink
	Metrics *metrics.Collector
	Tracer  trace.Tracer
	Logger  *zap.Logger
	Stages  Stages
}

// Runner processes queries.
type Runner struct {
	cfg      *config.Config
	backend  storage.Backend
	encoder  sdmx.TableEncoder
	sink     TableSink
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *zap.Logger
	stages   Stages
	mappings *storage.MappingStore
}

// New validates p and returns a Runner.
func New(p Params) (*Runner, error) {
	if p.Config == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "runner requires a configuration")
	}
	if p.Backend == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "runner requires a storage backend")
	}
	if p.Encoder == nil && !p.Stages.SkipSave {
		return nil, errors.New(errors.ErrorTypeConfig, "runner requires an encoder to save output")
	}

	p.Logger = logger.OrNop(p.Logger)
	if p.Metrics == nil {
		p.Metrics = metrics.NewCollector(prometheus.NewRegistry())
	}
	if p.Tracer == nil {
		p.Tracer = observability.Tracer()
	}

	return &Runner{
		cfg:      p.Config,
		backend:  p.Backend,
		encoder:  p.Encoder,
		sink:     p.Sink,
		metrics:  p.Metrics,
		tracer:   p.Tracer,
		logger:   p.Logger,
		stages:   p.Stages,
		mappings: storage.NewMappingStore(p.Backend, p.Config.Paths.Mappings, p.Config.Paths.Templates),
	}, nil
}

// Result is the outcome of one query.
type Result struct {
	QueryID  string
	Output   string
	Rows     int
	Copied   int64
	Unmapped map[string][]string
	Duration time.Duration
	Err      error
}

// Report collects the results of a run in the order the queries were given.
type Report struct {
	RunID    string
	Results  []Result
	Duration time.Duration
}

// Succeeded returns the number of queries without error.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failures returns the failed results.
func (r *Report) Failures() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// QueryIDs lists the queries stored in the queries directory, sorted.
func (r *Runner) QueryIDs(ctx context.Context) ([]string, error) {
	names, err := storage.Dir{Backend: r.backend, Path: r.cfg.Paths.Queries}.List(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list queries").
			WithDetail("path", r.cfg.Paths.Queries)
	}

	ids := make([]string, 0, len(names))
	for _, n := range names {
		base := path.Base(n)
		if strings.HasSuffix(base, queryExtension) {
			ids = append(ids, strings.TrimSuffix(base, queryExtension))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Run processes ids, or every stored query when ids is empty. With
// fail-fast enabled the first failure cancels queries not yet finished and
// is returned; otherwise failures are only reported.
func (r *Runner) Run(ctx context.Context, ids []string) (*Report, error) {
	start := time.Now()
	runID := newRunID(start)
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	log := logger.WithContext(ctx, r.logger)

	if len(ids) == 0 {
		var err error
		if ids, err = r.QueryIDs(ctx); err != nil {
			return nil, err
		}
	}

	log.Info("starting run",
		zap.Int("queries", len(ids)),
		zap.Int("workers", r.cfg.Performance.GetWorkers()),
		zap.Bool("map", r.stages.Map),
		zap.Bool("templates", r.stages.Templates))

	results := make([]Result, len(ids))
	tracker := r.metrics.NewThroughputTracker()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Performance.GetWorkers())

	for i, id := range ids {
		g.Go(func() error {
			results[i] = r.process(gctx, id)
			tracker.Increment(int64(results[i].Rows))
			if results[i].Err != nil && r.cfg.Reliability.FailFast {
				return results[i].Err
			}
			return nil
		})
	}
	runErr := g.Wait()

	report := &Report{RunID: runID, Results: results, Duration: time.Since(start)}
	log.Info("run finished",
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", len(report.Failures())),
		zap.Float64("rows_per_second", tracker.GetAndReset()),
		zap.Duration("duration", report.Duration))

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

// newRunID returns the UTC start time followed by a random suffix, so runs
// started in the same millisecond stay distinct.
func newRunID(start time.Time) string {
	return start.UTC().Format("20060102T150405.000") + "-" + uuid.NewString()[:8]
}

// process runs every stage for one query and records its outcome.
func (r *Runner) process(ctx context.Context, id string) Result {
	start := time.Now()
	res := Result{QueryID: id}
	// Observations add the query fields themselves.
	obsLog := logger.WithContext(ctx, r.logger)
	ctx = context.WithValue(ctx, logger.QueryIDKey, id)
	log := logger.WithContext(ctx, r.logger)

	ctx, span := observability.StartSpan(ctx, r.tracer, "query.process")
	span.SetAttribute("query.id", id)
	defer span.End()

	if err := ctx.Err(); err != nil {
		res.Err = errors.Wrap(err, errors.ErrorTypeInternal, "query cancelled").WithDetail("query", id)
		span.RecordError(res.Err)
		return res
	}

	if d := r.cfg.Timeouts.Query; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	res.Err = r.stagesFor(ctx, id, &res, obsLog)
	res.Duration = time.Since(start)

	span.SetAttribute("rows", res.Rows)
	if res.Err != nil {
		span.RecordError(res.Err)
		r.metrics.QueryProcessed(metrics.StatusFailure)
		log.Error("query failed", zap.Error(res.Err), zap.Duration("duration", res.Duration))
		return res
	}

	r.metrics.QueryProcessed(metrics.StatusSuccess)
	r.metrics.RowsProduced(res.Rows)
	log.Info("query processed",
		zap.String("output", res.Output),
		zap.Int("rows", res.Rows),
		zap.Duration("duration", res.Duration))
	return res
}

func (r *Runner) stagesFor(ctx context.Context, id string, res *Result, log *zap.Logger) error {
	timer := metrics.NewTimer()
	q, err := r.loadQuery(ctx, id)
	r.metrics.ObserveStage(metrics.StageLoad, timer.Stop())
	if err != nil {
		return err
	}

	timer = metrics.NewTimer()
	obs, err := sdmx.NewObservations(q, r.cfg.Query.ToSDMX(), log)
	r.metrics.ObserveStage(metrics.StageBuild, timer.Stop())
	if err != nil {
		return err
	}
	res.Rows = obs.Long().NumRows()

	// Templates list source codes, so they are written before mapping.
	if r.stages.Templates {
		timer = metrics.NewTimer()
		err := obs.SaveMappingTemplates(ctx, r.mappings)
		r.metrics.ObserveStage(metrics.StageTemplates, timer.Stop())
		if err != nil {
			return err
		}
	}

	if r.stages.Map {
		timer = metrics.NewTimer()
		report, err := obs.MapValues(ctx, r.mappings)
		r.metrics.ObserveStage(metrics.StageMap, timer.Stop())
		if err != nil {
			return err
		}
		if report.HasUnmapped() {
			res.Unmapped = report.Unmapped
			for column, codes := range report.Unmapped {
				r.metrics.UnmappedCodes(column, len(codes))
			}
		}
	}

	if !r.stages.SkipSave {
		timer = metrics.NewTimer()
		name, err := obs.Save(ctx, storage.Dir{Backend: r.backend, Path: r.cfg.Paths.Data}, r.encoder)
		r.metrics.ObserveStage(metrics.StageSave, timer.Stop())
		if err != nil {
			return err
		}
		res.Output = path.Join(r.cfg.Paths.Data, name)
	}

	if r.sink != nil {
		timer = metrics.NewTimer()
		n, err := r.sink.Copy(ctx, obs.Long())
		r.metrics.ObserveStage(metrics.StageCopy, timer.Stop())
		res.Copied = n
		if err != nil {
			return err
		}
	}

	return nil
}

// loadQuery reads <queries>/<id>.json. A missing envelope id is filled
// from the file name.
func (r *Runner) loadQuery(ctx context.Context, id string) (*sdmx.Query, error) {
	name := id + queryExtension
	rc, err := storage.Dir{Backend: r.backend, Path: r.cfg.Paths.Queries}.Open(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open query").
			WithDetail("query", id)
	}
	defer rc.Close()

	var q sdmx.Query
	if err := json.Decode(rc, &q); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode query").
			WithDetail("query", id)
	}
	if q.ID == "" {
		q.ID = id
	}
	return &q, nil
}
