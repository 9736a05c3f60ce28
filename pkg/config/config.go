package config

import (
	"runtime"
	"time"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

var (
	knownBackends     = []string{BackendLocal, BackendS3, BackendGCS}
	knownFormats      = []string{"csv", "jsonl", "parquet", "avro"}
	knownCompressions = []string{"none", "gzip", "zstd", "snappy", "s2", "lz4"}
	knownLogLevels    = []string{"debug", "info", "warn", "error"}
	knownEncodings    = []string{"json", "console"}
)

// Config is the complete configuration of a conversion run.
type Config struct {
	// Name identifies the run in logs and metrics
	Name string `yaml:"name" json:"name"`

	// Query holds the per-query processing settings
	Query QueryConfig `yaml:"query" json:"query"`

	// Storage selects where queries, outputs and mappings live
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Paths are relative to the storage root
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Output controls how observation tables are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Performance settings control concurrency
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Timeouts bound each query
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for error handling
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Observability settings for logging, metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// QueryConfig mirrors sdmx.QueryConfig with file tags.
type QueryConfig struct {
	// TemporalDimension names the time column (empty disables normalization)
	TemporalDimension string `yaml:"temporal_dimension" json:"temporal_dimension"`
	// IndicatorsToDrop lists measures excluded from the long table
	IndicatorsToDrop []string `yaml:"indicators_to_drop" json:"indicators_to_drop"`
	// DimensionsToMap lists the columns translated through mapping tables
	DimensionsToMap []string `yaml:"dimensions_to_map" json:"dimensions_to_map"`
	// UnmappedPolicy is one of missing, error or passthrough
	UnmappedPolicy string `yaml:"unmapped_policy" json:"unmapped_policy"`
	// NormalizeNumbers parses "10,5" and "3%" style measure values
	NormalizeNumbers bool `yaml:"normalize_numbers" json:"normalize_numbers"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Backend is one of local, s3 or gcs
	Backend string `yaml:"backend" json:"backend"`
	// Root is the base directory of the local backend
	Root   string `yaml:"root" json:"root"`
	Bucket string `yaml:"bucket" json:"bucket"`
	Region string `yaml:"region" json:"region"`
	// Prefix is prepended to every object key of the s3 and gcs backends
	Prefix string `yaml:"prefix" json:"prefix"`
	// Endpoint overrides the S3 endpoint (MinIO, localstack)
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// CredentialsFile is a GCS service account key (default credentials when empty)
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
}

// PathsConfig holds the directories used by a run.
type PathsConfig struct {
	Queries   string `yaml:"queries" json:"queries"`
	Data      string `yaml:"data" json:"data"`
	Mappings  string `yaml:"mappings" json:"mappings"`
	Templates string `yaml:"templates" json:"templates"`
}

// OutputConfig controls output encoding.
type OutputConfig struct {
	// Format is one of csv, jsonl, parquet or avro
	Format string `yaml:"format" json:"format"`
	// Delimiter separates CSV fields
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// Compression is one of none, gzip, zstd, snappy, s2 or lz4
	Compression string `yaml:"compression" json:"compression"`
	// PostgresDSN enables copying observations into PostgreSQL when set
	PostgresDSN   string `yaml:"postgres_dsn" json:"postgres_dsn"`
	PostgresTable string `yaml:"postgres_table" json:"postgres_table"`
}

// PerformanceConfig contains concurrency settings.
type PerformanceConfig struct {
	// Workers defines the number of queries processed concurrently
	Workers int `yaml:"workers" json:"workers"`
}

// TimeoutConfig contains timeout settings.
type TimeoutConfig struct {
	// Query bounds the processing of a single query (0 = no limit)
	Query time.Duration `yaml:"query" json:"query"`
}

// ReliabilityConfig contains error handling settings.
type ReliabilityConfig struct {
	// FailFast stops the run on the first failed query
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// EnableMetrics serves Prometheus metrics on MetricsAddr
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics"`
	MetricsAddr   string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing exports spans to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// Default returns a configuration matching the BADEA directory layout.
func Default() *Config {
	return &Config{
		Name: "badea",
		Query: QueryConfig{
			TemporalDimension: "TIME",
			UnmappedPolicy:    string(sdmx.UnmappedMissing),
		},
		Storage: StorageConfig{
			Backend: BackendLocal,
			Root:    "sistema_informacion",
		},
		Paths: PathsConfig{
			Queries:   "BADEA/consultas",
			Data:      "BADEA/datos",
			Mappings:  "mapas",
			Templates: "mapas_plantillas",
		},
		Output: OutputConfig{
			Format:      "csv",
			Delimiter:   ";",
			Compression: "none",
		},
		Performance: PerformanceConfig{
			Workers: runtime.NumCPU(),
		},
		Timeouts: TimeoutConfig{
			Query: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "console",
			MetricsAddr:       ":9090",
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and enumerated values.
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalid("name is required", "name", c.Name)
	}
	if !sdmx.UnmappedPolicy(c.Query.UnmappedPolicy).Valid() {
		return invalid("unknown unmapped policy", "query.unmapped_policy", c.Query.UnmappedPolicy)
	}
	if !oneOf(c.Storage.Backend, knownBackends) {
		return invalid("unknown storage backend", "storage.backend", c.Storage.Backend)
	}
	if c.Storage.Backend != BackendLocal && c.Storage.Bucket == "" {
		return invalid("bucket is required for remote storage", "storage.bucket", c.Storage.Bucket)
	}
	if c.Paths.Queries == "" || c.Paths.Data == "" {
		return invalid("query and data paths are required", "paths", c.Paths)
	}
	if !oneOf(c.Output.Format, knownFormats) {
		return invalid("unknown output format", "output.format", c.Output.Format)
	}
	if c.Output.Format == "csv" && len([]rune(c.Output.Delimiter)) != 1 {
		return invalid("delimiter must be a single character", "output.delimiter", c.Output.Delimiter)
	}
	if !oneOf(c.Output.Compression, knownCompressions) {
		return invalid("unknown compression", "output.compression", c.Output.Compression)
	}
	if c.Output.PostgresDSN != "" && c.Output.PostgresTable == "" {
		return invalid("postgres_table is required with postgres_dsn", "output.postgres_table", c.Output.PostgresTable)
	}
	if c.Performance.Workers < 0 {
		return invalid("workers cannot be negative", "performance.workers", c.Performance.Workers)
	}
	if c.Timeouts.Query < 0 {
		return invalid("query timeout cannot be negative", "timeouts.query", c.Timeouts.Query)
	}
	if !oneOf(c.Observability.LogLevel, knownLogLevels) {
		return invalid("unknown log level", "observability.log_level", c.Observability.LogLevel)
	}
	if !oneOf(c.Observability.LogEncoding, knownEncodings) {
		return invalid("unknown log encoding", "observability.log_encoding", c.Observability.LogEncoding)
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return invalid("tracing_sample_rate must be within [0, 1]", "observability.tracing_sample_rate", r)
	}
	return nil
}

// ToSDMX converts the query section into the settings the pipeline uses.
func (q QueryConfig) ToSDMX() sdmx.QueryConfig {
	return sdmx.QueryConfig{
		TemporalDimension: q.TemporalDimension,
		IndicatorsToDrop:  append([]string(nil), q.IndicatorsToDrop...),
		DimensionsToMap:   append([]string(nil), q.DimensionsToMap...),
		UnmappedPolicy:    sdmx.UnmappedPolicy(q.UnmappedPolicy),
		NormalizeNumbers:  q.NormalizeNumbers,
	}
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// IsCompressed returns true if outputs are compressed
func (o *OutputConfig) IsCompressed() bool {
	return o.Compression != "" && o.Compression != "none"
}

// HasPostgres returns true if observations are also copied into PostgreSQL
func (o *OutputConfig) HasPostgres() bool {
	return o.PostgresDSN != ""
}

func invalid(message, field string, value interface{}) error {
	return errors.New(errors.ErrorTypeConfig, message).
		WithDetail("field", field).
		WithDetail("value", value)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
