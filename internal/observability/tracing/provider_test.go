package tracing

import (
	"context"
	"testing"

	"github.com/smallbiznis/dairy/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCorrelationSpanProcessorTagsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(&correlationSpanProcessor{}),
		sdktrace.WithSpanProcessor(recorder),
	)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx := correlation.ContextWithCorrelationID(context.Background(), "cid-42")
	_, span := tp.Tracer("test").Start(ctx, "job")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), attribute.String("correlation_id", "cid-42"))
}

func TestNewProviderDisabledHasNoExporter(t *testing.T) {
	tp, err := NewProvider(nil, Config{ServiceName: "dairy", SamplingRatio: 0.5}, nil)
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	assert.Equal(t, 1.0, samplingRatio(0))
	assert.Equal(t, 0.5, samplingRatio(0.5))
}

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	_, err := newExporter(context.Background(), "carrier-pigeon", "")
	assert.Error(t, err)
}
