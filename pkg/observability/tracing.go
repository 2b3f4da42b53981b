// Package observability sets up OpenTelemetry tracing for the export
// pipeline.
package observability

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

const instrumentationName = "github.com/ajitpratap0/runvars"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	// SamplingRate is the fraction of traces kept (0.0-1.0)
	SamplingRate float64
	// Writer receives the stdout exporter output; nil means stderr
	Writer io.Writer
	// PrettyPrint indents exported spans
	PrettyPrint bool
	// BatchTimeout is the maximum delay before buffered spans are exported
	BatchTimeout time.Duration
}

// DefaultTracingConfig returns tracing defaults for the CLI.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "runvars",
		ServiceVersion: "dev",
		SamplingRate:   1.0,
		BatchTimeout:   time.Second,
	}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// NewTracerProvider builds a provider that batches spans into exporter.
func NewTracerProvider(config TracingConfig, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		semconv.ServiceNameKey.String(config.ServiceName),
		semconv.ServiceVersionKey.String(config.ServiceVersion),
	)

	var opts []sdktrace.BatchSpanProcessorOption
	if config.BatchTimeout > 0 {
		opts = append(opts, sdktrace.WithBatchTimeout(config.BatchTimeout))
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SamplingRate)),
		sdktrace.WithBatcher(exporter, opts...),
	)
}

// InitTracing installs a global tracer provider writing spans as JSON to
// config.Writer. The returned function flushes and shuts it down.
func InitTracing(config TracingConfig) (func(context.Context) error, error) {
	w := config.Writer
	if w == nil {
		w = os.Stderr
	}
	stdoutOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if config.PrettyPrint {
		stdoutOpts = append(stdoutOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(stdoutOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create stdout exporter")
	}

	tp := NewTracerProvider(config, exporter)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// Tracer creates spans for pipeline stages. The zero value is not usable;
// use NewTracer or Noop.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a tracer from provider, or from the global provider
// when provider is nil.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(instrumentationName)}
}

// Noop returns a tracer that records nothing.
func Noop() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}
}

// Start opens a span named "runvars.<stage>".
func (t *Tracer) Start(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "runvars."+stage, trace.WithAttributes(attrs...))
}

// Stage runs fn inside a span. A returned error marks the span failed and
// is recorded with its error type.
func (t *Tracer) Stage(ctx context.Context, stage string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := t.Start(ctx, stage, attrs...)
	defer span.End()

	err := fn(ctx)
	End(span, err)
	return err
}

// End sets the span status from err without ending the span.
func End(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.type", string(errors.GetType(err))))
	span.SetStatus(codes.Error, err.Error())
}
