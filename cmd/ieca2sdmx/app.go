package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/frapercan/IECA2SDMX/internal/runner"
	"github.com/frapercan/IECA2SDMX/pkg/compression"
	"github.com/frapercan/IECA2SDMX/pkg/config"
	"github.com/frapercan/IECA2SDMX/pkg/formats"
	"github.com/frapercan/IECA2SDMX/pkg/logger"
	"github.com/frapercan/IECA2SDMX/pkg/metrics"
	"github.com/frapercan/IECA2SDMX/pkg/observability"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
	"github.com/frapercan/IECA2SDMX/pkg/sink/postgres"
	"github.com/frapercan/IECA2SDMX/pkg/storage"
)

func stagesFrom(v *viper.Viper, templatesOnly bool) runner.Stages {
	if templatesOnly {
		return runner.Stages{Templates: true, SkipSave: true}
	}
	return runner.Stages{Map: v.GetBool("map"), Templates: v.GetBool("templates")}
}

// loadConfig reads the configuration file, when given, and applies flag and
// environment overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if w := v.GetInt("workers"); w > 0 {
		cfg.Performance.Workers = w
	}
	if s := v.GetString("log_level"); s != "" {
		cfg.Observability.LogLevel = s
	}
	if s := v.GetString("format"); s != "" {
		cfg.Output.Format = s
	}
	if s := v.GetString("compression"); s != "" {
		cfg.Output.Compression = s
	}
	if s := v.GetString("postgres_dsn"); s != "" {
		cfg.Output.PostgresDSN = s
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newEncoder(cfg *config.Config) (sdmx.TableEncoder, error) {
	alg, err := compression.Parse(cfg.Output.Compression)
	if err != nil {
		return nil, err
	}
	return formats.New(formats.Options{
		Format:      formats.Format(cfg.Output.Format),
		Delimiter:   cfg.Output.Delimiter,
		Compression: alg,
	})
}

func run(cmd *cobra.Command, v *viper.Viper, ids []string, stages runner.Stages) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("component", "ieca2sdmx-cli"), zap.String("config", cfg.Name))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.EnableTracing,
		ServiceName:    "ieca2sdmx",
		ServiceVersion: version,
		SamplingRate:   cfg.Observability.TracingSampleRate,
		Output:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("failed to shut down tracing", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)
	if cfg.Observability.EnableMetrics {
		srv, err := metrics.Listen(cfg.Observability.MetricsAddr, reg, log)
		if err != nil {
			return err
		}
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()
		go func() {
			if err := srv.Serve(metricsCtx); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	backend, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	if c, ok := backend.(io.Closer); ok {
		defer c.Close()
	}

	params := runner.Params{
		Config:  cfg,
		Backend: backend,
		Metrics: collector,
		Logger:  log,
		Stages:  stages,
	}

	if !stages.SkipSave {
		if params.Encoder, err = newEncoder(cfg); err != nil {
			return err
		}
		if cfg.Output.HasPostgres() {
			sink, err := postgres.New(ctx, cfg.Output.PostgresDSN, cfg.Output.PostgresTable, cfg.Performance.GetWorkers(), log)
			if err != nil {
				return err
			}
			defer sink.Close()
			params.Sink = sink
		}
	}

	r, err := runner.New(params)
	if err != nil {
		return err
	}

	report, err := r.Run(ctx, ids)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if failed := len(report.Failures()); failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(report.Results))
	}
	return nil
}

func printReport(w io.Writer, report *runner.Report) {
	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(w, "FAIL %s: %v\n", res.QueryID, res.Err)
		case res.Output != "":
			fmt.Fprintf(w, "ok   %s -> %s (%d rows)\n", res.QueryID, res.Output, res.Rows)
		default:
			fmt.Fprintf(w, "ok   %s (%d rows)\n", res.QueryID, res.Rows)
		}
		for column, codes := range res.Unmapped {
			fmt.Fprintf(w, "     %s: %d unmapped codes\n", column, len(codes))
		}
	}
	fmt.Fprintf(w, "%d succeeded, %d failed in %s\n",
		report.Succeeded(), len(report.Failures()), report.Duration.Round(time.Millisecond))
}
