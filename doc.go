// Package ieca2sdmx converts query results published by the Andalusian
// statistics institute (IECA, BADEA database) into SDMX observation tables.
//
// A stored query is a JSON envelope with positional data rows: one cell per
// hierarchy (a code path whose last element is the code) followed by one cell
// per measure. IECA2SDMX reshapes each query into one observation per
// dimension combination and indicator, normalizes the time period, tags the
// frequency and optionally translates codes through per-dimension mapping
// tables.
//
// # Pipeline
//
// Every query goes through the same stages:
//
//  1. Tabular construction: raw rows become a wide table (pkg/sdmx)
//  2. Measure decoupling: measure columns become INDICATOR/OBS_VALUE rows
//  3. Temporal formatting: 202301 becomes 2023-01, 20231 becomes 2023-Q1
//  4. Frequency insertion: Mensual becomes M, Anual becomes A
//  5. Code mapping: SOURCE to TARGET lookups for configured dimensions
//  6. Persistence: CSV, JSON lines, Parquet or Avro on local disk, S3 or GCS,
//     and optionally a PostgreSQL table
//
// # Quick Start
//
// Process a single query from Go:
//
//	import (
//	    "context"
//	    "github.com/frapercan/IECA2SDMX/pkg/config"
//	    "github.com/frapercan/IECA2SDMX/pkg/formats"
//	    "github.com/frapercan/IECA2SDMX/pkg/sdmx"
//	    "github.com/frapercan/IECA2SDMX/pkg/storage"
//	)
//
//	cfg := config.Default()
//	backend := storage.NewLocal(cfg.Storage.Root)
//
//	var q sdmx.Query
//	// decode cfg.Paths.Queries + "/1234.json" into q
//
//	obs, _ := sdmx.NewObservations(&q, cfg.Query.ToSDMX(), logger)
//	_, _ = obs.MapValues(ctx, storage.NewMappingStore(backend, cfg.Paths.Mappings, cfg.Paths.Templates))
//	enc, _ := formats.New(formats.Options{Format: formats.CSV})
//	name, _ := obs.Save(ctx, storage.Dir{Backend: backend, Path: cfg.Paths.Data}, enc)
//
// Or run the whole queries directory with the CLI:
//
//	ieca2sdmx process --config badea.yaml --map
//	ieca2sdmx template --config badea.yaml
//
// # Key Packages
//
//	pkg/sdmx          - Query model and the table transformations
//	pkg/storage       - Local, S3, GCS and in-memory backends
//	pkg/formats       - Table encoders (CSV, JSONL, Parquet, Avro)
//	pkg/compression   - Stream compression for text outputs
//	pkg/sink/postgres - COPY of observations into PostgreSQL
//	pkg/config        - YAML configuration with ${VAR} substitution
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus metrics
//	internal/runner   - Concurrent processing of many queries
//
// # Configuration
//
// Configuration is a YAML file decoded over defaults:
//
//	type Config struct {
//	    Name          string
//	    Query         QueryConfig         // Temporal dimension, indicators to drop, dimensions to map
//	    Storage       StorageConfig       // Backend, root, bucket, prefix
//	    Paths         PathsConfig         // Queries, data, mappings, templates
//	    Output        OutputConfig        // Format, delimiter, compression, PostgreSQL
//	    Performance   PerformanceConfig   // Workers
//	    Timeouts      TimeoutConfig       // Per-query timeout
//	    Reliability   ReliabilityConfig   // Fail fast
//	    Observability ObservabilityConfig // Logging, metrics, tracing
//	}
//
// Environment variables are supported with ${VAR_NAME} syntax. The CLI also
// reads IECA2SDMX_* overrides and a .env file.
package ieca2sdmx
