// Package sdmx reshapes the JSON result of a BADEA statistical query into
// an SDMX-style observation table.
//
// # Overview
//
// A query result is a list of positional rows. Each row holds one cell per
// hierarchy (a structured code path such as {"cod": ["ES", "ES51"]}) followed
// by one cell per measure (a structured value such as {"val": 10.5}).
// NewObservations turns such a result into two tables:
//
//   - the wide table: one row per observation, one column per hierarchy
//     alias and one column per measure;
//   - the long table: one row per (observation, measure) pair with the
//     columns <aliases...>, INDICATOR, OBS_VALUE and FREQ.
//
// # Stages
//
//	BuildWideTable   leaf codes and scalar values, temporal normalization
//	Decouple         unpivot measures into INDICATOR/OBS_VALUE
//	InsertFrequency  constant FREQ column from the periodicity
//	MapValues        left join of dimension codes against mapping tables
//
// The first three stages run inside NewObservations. MapValues and the
// mapping template helpers are called later against the long table.
//
// # Basic Usage
//
//	obs, err := sdmx.NewObservations(query, sdmx.QueryConfig{
//	    TemporalDimension: "TIME",
//	    DimensionsToMap:   []string{"GEO"},
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	report, err := obs.MapValues(ctx, mappingStore)
//
// # Concurrency
//
// An Observations value is owned by a single goroutine. Independent
// queries are processed by independent instances with no shared state.
package sdmx
