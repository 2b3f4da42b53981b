package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/runvars/pkg/compression"
	"github.com/ajitpratap0/runvars/pkg/errors"
	"github.com/ajitpratap0/runvars/pkg/formats"
	"github.com/ajitpratap0/runvars/pkg/variables"
)

// PipelineConfig is the configuration of one export run: where the raw run
// definitions come from, how the collection is shaped and where the table
// goes.
type PipelineConfig struct {
	// Name identifies the job in logs and metrics
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	Input         InputConfig         `yaml:"input" json:"input"`
	Export        ExportConfig        `yaml:"export" json:"export"`
	Output        OutputConfig        `yaml:"output" json:"output"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// InputConfig describes the manifest of raw runs.
type InputConfig struct {
	// Manifest is a JSON or YAML file holding a list of raw runs
	Manifest string `yaml:"manifest" json:"manifest"`
	// SamplingRate is the collection rate in Hz (0 uses the default of 10)
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate"`
	// ScanLength is the run duration in seconds applied to runs that do not
	// declare one
	ScanLength float64 `yaml:"scan_length" json:"scan_length"`
	// Merge combines every run into one collection; otherwise each run is
	// exported on its own and the tables are concatenated
	Merge bool `yaml:"merge" json:"merge"`
}

// ExportConfig selects the table shape.
type ExportConfig struct {
	// Format is wide or long
	Format string `yaml:"format" json:"format"`
	// Density is sparse or dense
	Density string `yaml:"density" json:"density"`
	// Rate is the dense export rate in Hz (0 uses the collection rate)
	Rate float64 `yaml:"rate" json:"rate"`
	// Method is nearest or linear
	Method string `yaml:"method" json:"method"`
	// Variables restricts the export to these names
	Variables []string `yaml:"variables" json:"variables"`
	// ExpandCategorical turns categorical variables into one indicator
	// variable per level before a dense export
	ExpandCategorical bool `yaml:"expand_categorical" json:"expand_categorical"`
}

// OutputConfig describes the serialized table and its destination.
type OutputConfig struct {
	// Path is a local file or an s3://, gs:// or postgres:// URL. "-" writes
	// to stdout.
	Path string `yaml:"path" json:"path"`
	// TableFormat overrides the format inferred from Path
	TableFormat string `yaml:"table_format" json:"table_format"`
	// Codec is the compression inside Parquet and Avro files
	Codec string `yaml:"codec" json:"codec"`
	// Compression wraps the whole serialized stream (gzip, zstd, ...)
	Compression string `yaml:"compression" json:"compression"`
	// Level is the stream compression level (1-9)
	Level int `yaml:"level" json:"level"`
	// BatchSize is the rows per Arrow batch or Parquet row group
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Timeout bounds the upload to the destination
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// EnableMetrics activates metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsFile receives the metrics in Prometheus text format at the end
	// of the run
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
	// EnableTracing writes pipeline spans to stderr
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// Default returns a configuration with every optional field set.
func Default() *PipelineConfig {
	return &PipelineConfig{
		Name:    "runvars",
		Version: "1.0.0",
		Input: InputConfig{
			SamplingRate: variables.DefaultSamplingRate,
			Merge:        true,
		},
		Export: ExportConfig{
			Format:  variables.Wide.String(),
			Density: variables.Sparse.String(),
			Method:  variables.Nearest.String(),
		},
		Output: OutputConfig{
			Codec:       "snappy",
			Compression: string(compression.None),
			Level:       int(compression.Default),
			BatchSize:   formats.DefaultWriterConfig().BatchSize,
			Timeout:     5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "console",
			EnableMetrics:     true,
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and resolves every enumerated value.
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if c.Input.Manifest == "" {
		return errors.New(errors.ErrorTypeConfig, "input.manifest is required")
	}
	if c.Input.SamplingRate < 0 {
		return errors.New(errors.ErrorTypeConfig, "input.sampling_rate cannot be negative")
	}
	if c.Input.ScanLength < 0 {
		return errors.New(errors.ErrorTypeConfig, "input.scan_length cannot be negative")
	}
	if _, err := c.ExportOptions(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid export section")
	}
	if c.Output.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "output.path is required")
	}
	if _, err := c.WriterConfig(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output section")
	}
	if _, err := c.CompressionConfig(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output section")
	}
	if c.Output.Timeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "output.timeout cannot be negative")
	}
	switch strings.ToLower(c.Observability.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown log level %q", c.Observability.LogLevel)
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return errors.New(errors.ErrorTypeConfig, "observability.tracing_sample_rate must be between 0 and 1")
	}
	return nil
}

// BuildOptions returns the options for building run collections.
func (c *PipelineConfig) BuildOptions() variables.BuildOptions {
	return variables.BuildOptions{
		SamplingRate: c.Input.SamplingRate,
		ScanLength:   c.Input.ScanLength,
	}
}

// ExportOptions resolves the export section.
func (c *PipelineConfig) ExportOptions() (variables.ExportOptions, error) {
	var opts variables.ExportOptions
	if c.Export.Rate < 0 {
		return opts, errors.New(errors.ErrorTypeValidation, "export.rate cannot be negative")
	}
	format, err := variables.ParseFormat(strings.ToLower(c.Export.Format))
	if err != nil {
		return opts, err
	}
	density, err := variables.ParseDensity(strings.ToLower(c.Export.Density))
	if err != nil {
		return opts, err
	}
	method, err := variables.ParseMethod(strings.ToLower(c.Export.Method))
	if err != nil {
		return opts, err
	}
	return variables.ExportOptions{
		Density:   density,
		Format:    format,
		Rate:      c.Export.Rate,
		Method:    method,
		Variables: c.Export.Variables,
	}, nil
}

// WriterConfig resolves the table format, inferring it from the output
// path when table_format is empty.
func (c *PipelineConfig) WriterConfig() (*formats.WriterConfig, error) {
	var (
		format formats.Format
		err    error
	)
	switch {
	case c.Output.TableFormat != "":
		format, err = formats.ParseFormat(c.Output.TableFormat)
	case c.Output.Path == "-" || strings.HasPrefix(c.Output.Path, "postgres://") || strings.HasPrefix(c.Output.Path, "postgresql://"):
		format = formats.TSV
	default:
		format, err = formats.FromPath(c.Output.Path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "table format")
	}
	if c.Output.BatchSize < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "output.batch_size cannot be negative")
	}
	return &formats.WriterConfig{
		Format:      format,
		BatchSize:   c.Output.BatchSize,
		Compression: c.Output.Codec,
	}, nil
}

// CompressionConfig resolves the stream compression settings.
func (c *PipelineConfig) CompressionConfig() (*compression.Config, error) {
	alg, err := compression.ParseAlgorithm(c.Output.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "output.compression")
	}
	level := compression.Level(c.Output.Level)
	if level == 0 {
		level = compression.Default
	}
	if level < compression.Fastest || level > compression.Best {
		return nil, errors.Newf(errors.ErrorTypeValidation, "output.level %d out of range 1-9", c.Output.Level)
	}
	return &compression.Config{Algorithm: alg, Level: level}, nil
}
