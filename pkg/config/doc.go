// Package config provides the configuration of an IECA2SDMX run.
//
// A single Config structure covers every stage: query processing, storage,
// output encoding and observability. Files are YAML and are decoded over
// Default, so a file only needs the keys it changes.
//
// # Usage
//
//	cfg, err := config.Load("ieca2sdmx.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	obs, err := sdmx.NewObservations(query, cfg.Query.ToSDMX(), logger)
//
// # Environment Variable Substitution
//
//	# ieca2sdmx.yaml
//	storage:
//	  backend: s3
//	  bucket: ${IECA_BUCKET}
//	output:
//	  postgres_dsn: ${DATABASE_URL}
//	  postgres_table: observations
//
// # Configuration Structure
//
//	name: badea
//	query:
//	  temporal_dimension: TIME
//	  indicators_to_drop: []
//	  dimensions_to_map: [GEO, SEX]
//	  unmapped_policy: missing
//	  normalize_numbers: false
//	storage:
//	  backend: local
//	  root: sistema_informacion
//	paths:
//	  queries: BADEA/consultas
//	  data: BADEA/datos
//	  mappings: mapas
//	  templates: mapas_plantillas
//	output:
//	  format: csv
//	  delimiter: ";"
//	  compression: none
//	performance:
//	  workers: 4
//	timeouts:
//	  query: 5m
//	reliability:
//	  fail_fast: false
//	observability:
//	  log_level: info
//	  log_encoding: console
//	  enable_metrics: false
//	  metrics_addr: ":9090"
//	  enable_tracing: false
//	  tracing_sample_rate: 1.0
//
// The CLI layers IECA2SDMX_* environment variables and flags on top of the
// file through viper.
package config
