package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/runvars/internal/pipeline"
	"github.com/ajitpratap0/runvars/pkg/config"
	"github.com/ajitpratap0/runvars/pkg/json"
	"github.com/ajitpratap0/runvars/pkg/logger"
	"github.com/ajitpratap0/runvars/pkg/observability"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "runvars",
		Short: "runvars - run variable collections for neuroimaging designs",
		Long: `runvars builds per-run design variables (events, regressors, physiological
recordings) into collections, merges them across runs and subjects, resamples
them onto a common grid and exports them as wide or long tables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to a pipeline YAML configuration")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-encoding", "", "Log encoding (json or console)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "runvars v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newExportCmd(), newInspectCmd())
	return root
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export run variables as a table",
		Long: `Load raw runs from a manifest, merge them and write one table.

Example:
  runvars export --manifest runs.yaml --output ds005.parquet --format long
  runvars export --manifest 'sub-*.json.gz' --dense --rate 10 --output s3://bucket/ds005.tsv.gz --compression gzip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := bindFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			shutdown, err := setupObservability(cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context())
			if err != nil {
				logger.Error("export failed", zap.String("manifest", cfg.Input.Manifest), zap.Error(err))
				return err
			}
			logger.Info("export finished",
				zap.Int("runs", res.Runs),
				zap.Int("rows", res.Rows),
				zap.Int64("bytes", res.Bytes),
				zap.String("destination", res.Destination),
				zap.Duration("duration", res.Duration))
			if cfg.Output.Path == "-" {
				return nil
			}
			return printJSON(cmd, res)
		},
	}

	f := cmd.Flags()
	f.StringP("manifest", "m", "", "Manifest file or glob of raw runs (.json or .yaml, optionally compressed)")
	f.StringP("output", "o", "", "Destination: a file path, s3://, gs:// or postgres:// URL, or - for stdout")
	f.String("format", "", "Table layout (wide or long)")
	f.Bool("dense", false, "Export dense variables resampled to --rate")
	f.Float64("rate", 0, "Dense export rate in Hz (default: the collection rate)")
	f.String("method", "", "Dense rerating method (nearest or linear)")
	f.Bool("expand-categorical", false, "Turn categorical variables into one indicator per level before a dense export")
	f.StringSlice("variables", nil, "Only export these variables")
	f.Float64("sampling-rate", 0, "Collection sampling rate in Hz")
	f.Float64("scan-length", 0, "Run duration in seconds for runs that do not declare one")
	f.Bool("no-merge", false, "Export each run on its own and concatenate the tables")
	f.String("table-format", "", "Serialization (parquet, arrow, avro, csv, tsv, jsonl); inferred from --output")
	f.String("codec", "", "Compression inside parquet and avro files")
	f.String("compression", "", "Stream compression (none, gzip, zstd, snappy, s2, lz4)")
	f.Duration("timeout", 0, "Upload timeout")
	f.String("metrics-file", "", "Write Prometheus metrics to this file when the run ends")
	f.Bool("trace", false, "Write trace spans to stderr")
	return cmd
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the merged collection of a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := bindFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if cfg.Output.Path == "" {
				// inspect writes nothing
				cfg.Output.Path = "-"
			}
			shutdown, err := setupObservability(cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			summary, err := p.Inspect(cmd.Context())
			if err != nil {
				logger.Error("inspect failed", zap.String("manifest", cfg.Input.Manifest), zap.Error(err))
				return err
			}
			return printJSON(cmd, summary)
		},
	}
	f := cmd.Flags()
	f.StringP("manifest", "m", "", "Manifest file or glob of raw runs")
	f.Float64("sampling-rate", 0, "Collection sampling rate in Hz")
	f.Float64("scan-length", 0, "Run duration in seconds for runs that do not declare one")
	return cmd
}

// bindFlags exposes every flag of cmd through viper, overridable by
// RUNVARS_<FLAG> environment variables.
func bindFlags(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("RUNVARS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// loadConfig starts from the defaults, applies --config and then every flag
// or environment variable that was set.
func loadConfig(v *viper.Viper) (*config.PipelineConfig, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}

	set := func(key string, apply func()) {
		if v.IsSet(key) {
			apply()
		}
	}
	set("manifest", func() { cfg.Input.Manifest = v.GetString("manifest") })
	set("sampling-rate", func() { cfg.Input.SamplingRate = v.GetFloat64("sampling-rate") })
	set("scan-length", func() { cfg.Input.ScanLength = v.GetFloat64("scan-length") })
	set("no-merge", func() { cfg.Input.Merge = !v.GetBool("no-merge") })
	set("format", func() { cfg.Export.Format = v.GetString("format") })
	set("dense", func() {
		if v.GetBool("dense") {
			cfg.Export.Density = "dense"
		} else {
			cfg.Export.Density = "sparse"
		}
	})
	set("rate", func() { cfg.Export.Rate = v.GetFloat64("rate") })
	set("method", func() { cfg.Export.Method = v.GetString("method") })
	set("expand-categorical", func() { cfg.Export.ExpandCategorical = v.GetBool("expand-categorical") })
	set("variables", func() { cfg.Export.Variables = v.GetStringSlice("variables") })
	set("output", func() { cfg.Output.Path = v.GetString("output") })
	set("table-format", func() { cfg.Output.TableFormat = v.GetString("table-format") })
	set("codec", func() { cfg.Output.Codec = v.GetString("codec") })
	set("compression", func() { cfg.Output.Compression = v.GetString("compression") })
	set("timeout", func() { cfg.Output.Timeout = v.GetDuration("timeout") })
	set("metrics-file", func() { cfg.Observability.MetricsFile = v.GetString("metrics-file") })
	set("trace", func() { cfg.Observability.EnableTracing = v.GetBool("trace") })
	set("log-level", func() { cfg.Observability.LogLevel = v.GetString("log-level") })
	set("log-encoding", func() { cfg.Observability.LogEncoding = v.GetString("log-encoding") })
	return cfg, nil
}

// setupObservability initializes the global logger and, when enabled,
// stderr tracing. The returned function flushes both.
func setupObservability(cfg *config.PipelineConfig) (func(), error) {
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return nil, err
	}

	shutdownTracing := func(context.Context) error { return nil }
	if cfg.Observability.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceName = cfg.Name
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Observability.TracingSampleRate
		var err error
		if shutdownTracing, err = observability.InitTracing(tc); err != nil {
			return nil, err
		}
	}

	logger.Debug("observability ready",
		zap.String("log_level", cfg.Observability.LogLevel),
		zap.Bool("tracing", cfg.Observability.EnableTracing))

	return func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
		_ = logger.Sync()
	}, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
