package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

func recorder() (*Tracer, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewTracer(tp), sr
}

func TestTracer_Stage(t *testing.T) {
	tracer, sr := recorder()

	err := tracer.Stage(context.Background(), "export", func(ctx context.Context) error {
		return nil
	}, attribute.Int("rows", 4128))
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "runvars.export", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("rows", 4128))
}

func TestTracer_StageError(t *testing.T) {
	tracer, sr := recorder()
	failure := errors.New(errors.ErrorTypeSamplingRateMismatch, "rates differ")

	err := tracer.Stage(context.Background(), "merge", func(ctx context.Context) error {
		return failure
	})
	assert.Equal(t, failure, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("error.type", "sampling_rate_mismatch"))
	require.Len(t, spans[0].Events(), 1, "the error is recorded as an event")
}

func TestTracer_Nesting(t *testing.T) {
	tracer, sr := recorder()

	ctx, parent := tracer.Start(context.Background(), "pipeline")
	require.NoError(t, tracer.Stage(ctx, "build", func(context.Context) error { return nil }))
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "runvars.build", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestNoop(t *testing.T) {
	err := Noop().Stage(context.Background(), "write", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestInitTracing(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Writer = &buf

	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)

	require.NoError(t, NewTracer(nil).Stage(context.Background(), "load", func(context.Context) error { return nil }))
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "runvars.load")
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
