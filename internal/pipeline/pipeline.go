// Package pipeline runs an export job end to end: it loads raw run
// manifests, builds and merges the run collections, renders them into a
// table and delivers the serialized table to a sink.
//
// Stages run sequentially under one context. Each stage is logged, timed
// into the metrics collector and wrapped in a trace span:
//
//	load -> build -> merge -> resample -> export -> write/upload
package pipeline

import (
	"context"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/runvars/pkg/columnar"
	"github.com/ajitpratap0/runvars/pkg/compression"
	"github.com/ajitpratap0/runvars/pkg/config"
	"github.com/ajitpratap0/runvars/pkg/errors"
	"github.com/ajitpratap0/runvars/pkg/formats"
	"github.com/ajitpratap0/runvars/pkg/logger"
	"github.com/ajitpratap0/runvars/pkg/metrics"
	"github.com/ajitpratap0/runvars/pkg/observability"
	"github.com/ajitpratap0/runvars/pkg/sink"
	"github.com/ajitpratap0/runvars/pkg/variables"
)

// SinkOpener resolves a destination URL to a sink.
type SinkOpener func(ctx context.Context, destination string) (sink.Sink, error)

// Pipeline executes one configured export.
type Pipeline struct {
	cfg     *config.PipelineConfig
	metrics *metrics.Collector
	tracer  *observability.Tracer
	open    SinkOpener
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithMetrics records into c instead of a private collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = c }
}

// WithTracer replaces the global tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithSinkOpener replaces sink.Open.
func WithSinkOpener(open SinkOpener) Option {
	return func(p *Pipeline) { p.open = open }
}

// New validates cfg and returns a pipeline.
func New(cfg *config.PipelineConfig, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "nil pipeline configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewCollector(cfg.Name)
	}
	if p.tracer == nil {
		p.tracer = observability.NewTracer(nil)
	}
	if p.open == nil {
		p.open = sink.Open
	}
	return p, nil
}

// Metrics returns the collector the pipeline records into.
func (p *Pipeline) Metrics() *metrics.Collector { return p.metrics }

// Result summarizes a completed run.
type Result struct {
	Runs         int           `json:"runs"`
	Variables    int           `json:"variables"`
	SamplingRate float64       `json:"sampling_rate"`
	Rows         int           `json:"rows"`
	Columns      []string      `json:"columns"`
	Bytes        int64         `json:"bytes"`
	Destination  string        `json:"destination"`
	Duration     time.Duration `json:"duration"`
}

// Run executes every stage and delivers the table.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	ctx = logger.ContextWith(ctx, logger.JobIDKey, p.cfg.Name)
	ctx, span := p.tracer.Start(ctx, "pipeline", attribute.String("job", p.cfg.Name))
	defer span.End()

	log := logger.WithContext(ctx)
	log.Info("starting export",
		zap.String("manifest", p.cfg.Input.Manifest),
		zap.String("destination", p.cfg.Output.Path))

	res, err := p.run(ctx)
	observability.End(span, err)
	defer p.flushMetrics(log)
	if err != nil {
		log.Error("export failed", zap.Error(err))
		return nil, err
	}

	res.Duration = time.Since(start)
	if secs := res.Duration.Seconds(); secs > 0 {
		p.metrics.Throughput.Set(float64(res.Rows) / secs)
	}
	p.metrics.MarkSuccess()
	log.Info("export completed",
		zap.Int("runs", res.Runs),
		zap.Int("rows", res.Rows),
		zap.Int64("bytes", res.Bytes),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// flushMetrics writes the registry to observability.metrics_file, if set.
func (p *Pipeline) flushMetrics(log *zap.Logger) {
	path := p.cfg.Observability.MetricsFile
	if path == "" || !p.cfg.Observability.EnableMetrics {
		return
	}
	if err := p.metrics.WriteToTextfile(path); err != nil {
		log.Warn("failed to write metrics file", zap.String("path", path), zap.Error(err))
	}
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	runs, err := p.build(ctx)
	if err != nil {
		return nil, err
	}

	var tbl *columnar.Table
	res := &Result{Runs: len(runs), Destination: p.cfg.Output.Path}
	if p.cfg.Input.Merge {
		merged, err := p.merge(ctx, runs)
		if err != nil {
			return nil, err
		}
		res.Variables = merged.Len()
		res.SamplingRate = merged.SamplingRate()
		if tbl, err = p.export(ctx, merged); err != nil {
			return nil, err
		}
	} else {
		if tbl, err = p.exportEach(ctx, runs); err != nil {
			return nil, err
		}
		res.SamplingRate = runs[0].SamplingRate()
		res.Variables = distinctVariables(runs)
	}
	res.Rows = tbl.NumRows()
	res.Columns = tbl.ColumnNames()

	if res.Bytes, err = p.deliver(ctx, tbl); err != nil {
		return nil, err
	}
	return res, nil
}

// stage runs fn as a named stage with logging, timing and a span. Errors
// are counted by type.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, name+" cancelled")
	}
	ctx = logger.ContextWith(ctx, logger.StageKey, name)
	log := logger.WithContext(ctx)
	log.Debug("stage started")

	timer := p.metrics.Timer(name)
	err := p.tracer.Stage(ctx, name, fn, attrs...)
	elapsed := timer.Stop()
	if err != nil {
		errType := errors.GetType(err)
		if errType == "" {
			errType = errors.ErrorTypeInternal
		}
		p.metrics.RecordError(name, string(errType))
		return err
	}
	log.Debug("stage completed", zap.Duration("elapsed", elapsed))
	return nil
}

// build loads the manifests and validates every run.
func (p *Pipeline) build(ctx context.Context) ([]*variables.Collection, error) {
	var manifest *Manifest
	err := p.stage(ctx, metrics.StageLoad, func(context.Context) error {
		var err error
		manifest, err = LoadManifests(p.cfg.Input.Manifest)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.metrics.RunsLoaded.Add(float64(len(manifest.Runs)))

	opts := p.cfg.BuildOptions()
	if opts.ScanLength == 0 {
		opts.ScanLength = manifest.ScanLength
	}

	var runs []*variables.Collection
	err = p.stage(ctx, metrics.StageBuild, func(context.Context) error {
		var err error
		runs, err = variables.BuildRunCollections(manifest.Runs, opts)
		return err
	}, attribute.Int("runs", len(manifest.Runs)))
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "manifest holds no runs")
	}

	for _, c := range runs {
		for _, v := range c.Variables() {
			p.metrics.VariablesBuilt.WithLabelValues(v.Density().String()).Inc()
		}
	}
	logger.WithContext(ctx).Info("runs built", zap.Int("runs", len(runs)))
	return runs, nil
}

func (p *Pipeline) merge(ctx context.Context, runs []*variables.Collection) (*variables.Collection, error) {
	var merged *variables.Collection
	err := p.stage(ctx, metrics.StageMerge, func(context.Context) error {
		var err error
		merged, err = variables.Merge(runs...)
		return err
	}, attribute.Int("runs", len(runs)))
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("runs merged",
		zap.Int("variables", merged.Len()),
		zap.Any("entities", merged.Entities()))
	return merged, nil
}

// export renders c into a table. Dense exports with expand_categorical
// first replace categorical variables by their indicator variables.
func (p *Pipeline) export(ctx context.Context, c *variables.Collection) (*columnar.Table, error) {
	opts, err := p.cfg.ExportOptions()
	if err != nil {
		return nil, err
	}

	if opts.Density == variables.Dense && p.cfg.Export.ExpandCategorical {
		err := p.stage(ctx, metrics.StageResample, func(context.Context) error {
			var err error
			c, err = c.Resampled(variables.ResampleOptions{
				Rate:              opts.Rate,
				ForceDense:        true,
				Method:            opts.Method,
				Variables:         opts.Variables,
				ExpandCategorical: true,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(opts.Variables) > 0 {
			opts.Variables = expandedNames(c.Names(), opts.Variables)
		}
	}
	if opts.Density == variables.Dense {
		for _, v := range c.DenseVariables() {
			p.metrics.Samples.Add(float64(v.Len()))
		}
	}

	var tbl *columnar.Table
	err = p.stage(ctx, metrics.StageExport, func(context.Context) error {
		var err error
		tbl, err = c.ToTable(opts)
		return err
	}, attribute.String("density", opts.Density.String()), attribute.String("format", opts.Format.String()))
	if err != nil {
		return nil, err
	}
	p.metrics.RowsExported.Add(float64(tbl.NumRows()))
	return tbl, nil
}

// exportEach exports every run on its own and stacks the tables.
func (p *Pipeline) exportEach(ctx context.Context, runs []*variables.Collection) (*columnar.Table, error) {
	tables := make([]*columnar.Table, 0, len(runs))
	for _, c := range runs {
		tbl, err := p.export(ctx, c)
		if err != nil {
			return nil, err
		}
		tables = append(tables, tbl)
	}
	tbl, err := columnar.Concat(tables...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIncompatibleCollections, "failed to stack run tables")
	}
	return tbl, nil
}

// expandedNames keeps the selected names plus the "<name>.<level>"
// indicators that replaced selected categorical variables.
func expandedNames(names, selected []string) []string {
	var out []string
	for _, name := range names {
		for _, sel := range selected {
			if name == sel || strings.HasPrefix(name, sel+".") {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func distinctVariables(runs []*variables.Collection) int {
	seen := make(map[string]bool)
	for _, c := range runs {
		for _, name := range c.Names() {
			seen[name] = true
		}
	}
	return len(seen)
}

// deliver serializes tbl into the sink, or hands rows to a table sink.
func (p *Pipeline) deliver(ctx context.Context, tbl *columnar.Table) (int64, error) {
	if p.cfg.Output.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Output.Timeout)
		defer cancel()
	}

	s, err := p.open(ctx, p.cfg.Output.Path)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	var written int64
	if ts, ok := s.(sink.TableSink); ok {
		err = p.stage(ctx, metrics.StageUpload, func(ctx context.Context) error {
			var err error
			written, err = ts.PutTable(ctx, tbl)
			return err
		}, attribute.String("sink", s.Scheme()))
		return written, err
	}

	wc, err := p.cfg.WriterConfig()
	if err != nil {
		return 0, err
	}
	cc, err := p.cfg.CompressionConfig()
	if err != nil {
		return 0, err
	}
	obj := sink.Object{ContentType: wc.Format.ContentType()}
	if cc.Algorithm != compression.None && cc.Algorithm != "" {
		obj.ContentEncoding = string(cc.Algorithm)
	}

	err = p.stage(ctx, metrics.StageWrite, func(ctx context.Context) error {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(serialize(pw, tbl, wc, cc))
		}()
		var err error
		written, err = s.Put(ctx, pr, obj)
		// unblock the serializer if the sink gave up early
		pr.CloseWithError(err)
		return err
	}, attribute.String("sink", s.Scheme()), attribute.String("table_format", string(wc.Format)))
	if err != nil {
		return written, err
	}
	p.metrics.BytesWritten.WithLabelValues(s.Scheme()).Add(float64(written))
	return written, nil
}

// serialize writes tbl through the stream compressor.
func serialize(w io.Writer, tbl *columnar.Table, wc *formats.WriterConfig, cc *compression.Config) error {
	cw, err := compression.NewWriter(w, cc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}
	if err := formats.Write(cw, tbl, wc); err != nil {
		cw.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to serialize table")
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush compressor")
	}
	return nil
}
