// Package runvars builds, merges, resamples and exports the per-run design
// variables of neuroimaging experiments: task events, continuous
// regressors and physiological recordings.
//
// # Model
//
// A run is one acquisition identified by its entities (subject, session,
// task, run, ...). Every variable belongs to one or more runs and is either
//
//   - sparse: events with onset, duration and a numeric amplitude or a
//     categorical label, or
//   - dense: a sampled series at a fixed rate in Hz.
//
// A collection groups variables at a common sampling rate. Collections of
// single runs merge into one collection spanning subjects; sparse variables
// densify onto the collection grid and dense ones are rerated with nearest
// or linear interpolation.
//
// # Quick Start
//
// Export a merged collection as a long table:
//
//	import (
//	    "github.com/ajitpratap0/runvars/pkg/variables"
//	)
//
//	runs, _ := variables.BuildRunCollections(raw, variables.BuildOptions{ScanLength: 480})
//	merged, _ := variables.Merge(runs...)
//	table, _ := merged.ToTable(variables.ExportOptions{
//	    Density: variables.Dense,
//	    Format:  variables.Long,
//	    Rate:    10,
//	})
//
// Or from the command line:
//
//	runvars export --manifest runs.yaml --dense --rate 10 --output ds005.parquet
//
// # Key Packages
//
//	pkg/variables     - Sparse and dense variables, collections, merge, resampling, export
//	pkg/columnar      - Typed in-memory tables (float, string and mixed columns)
//	pkg/formats       - CSV, TSV, JSON lines, Arrow, Parquet and Avro serialization
//	pkg/compression   - Stream compression (gzip, zstd, snappy, s2, lz4)
//	pkg/sink          - Destinations: local files, stdout, S3, GCS, PostgreSQL
//	pkg/config        - Pipeline configuration (YAML with ${VAR} substitution)
//	pkg/errors        - Typed errors with stack capture
//	pkg/logger        - Structured logging on zap
//	pkg/metrics       - Prometheus metrics per pipeline stage
//	pkg/observability - OpenTelemetry tracing
//	internal/pipeline - Manifest loading and the staged export pipeline
//
// # Configuration
//
// A pipeline is configured in YAML; flags and RUNVARS_* environment
// variables override it:
//
//	name: ds005
//	input:
//	  manifest: runs/*.json.gz
//	  scan_length: 480
//	export:
//	  format: wide
//	  density: dense
//	  rate: 10
//	output:
//	  path: s3://derivatives/ds005/variables.parquet
//
// # Development
//
// Run tests and benchmarks:
//
//	go test ./...
//	go test -short ./...                 # Skip integration tests
//	go test -bench=. ./pkg/variables     # DS005 export benchmarks
package runvars
