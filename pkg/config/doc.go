// Package config loads and validates the pipeline configuration used by the
// runvars CLI.
//
// A configuration is a YAML document with four sections:
//
//	name: ds005-dense
//	input:
//	  manifest: ${DATA_DIR}/runs.yaml
//	  scan_length: 480
//	export:
//	  format: long
//	  density: dense
//	  rate: 10
//	output:
//	  path: s3://${BUCKET:-derivatives}/ds005/variables.parquet
//	  codec: zstd
//	observability:
//	  log_level: debug
//	  metrics_file: /tmp/runvars.prom
//
// Environment variables are substituted with ${VAR_NAME} and
// ${VAR_NAME:-default} syntax before parsing. LoadPipeline starts from
// Default, so every key is optional except input.manifest and output.path.
//
// Validate resolves the enumerated settings through the packages that own
// them (variables, formats, compression) and reports failures as
// errors.ErrorTypeConfig.
package config
