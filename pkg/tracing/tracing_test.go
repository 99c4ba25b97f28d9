package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown := Setup("clover-test", exporter)
	defer func() { _ = shutdown(context.Background()) }()

	assert.Empty(t, InjectHeaders(context.Background()))
	assert.Empty(t, GetTraceID(context.Background()))

	ctx, span := StartSpan(context.Background(), "kafka.Producer.PublishAlert")
	headers := InjectHeaders(ctx)
	require.Contains(t, headers, "traceparent")

	remote := ExtractHeaders(context.Background(), headers)
	assert.Equal(t, GetTraceID(ctx), GetTraceID(remote))
	span.End()
}

// keepingExporter retains spans across Shutdown.
type keepingExporter struct {
	*tracetest.InMemoryExporter
}

func (keepingExporter) Shutdown(context.Context) error { return nil }

func TestRecordError(t *testing.T) {
	exporter := keepingExporter{tracetest.NewInMemoryExporter()}
	shutdown := Setup("clover-test", exporter)

	_, span := StartSpan(context.Background(), "processor.Processor.ProcessOrder")
	RecordError(span, nil)
	RecordError(span, errors.New("settings store unavailable"))
	span.End()
	require.NoError(t, shutdown(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Len(t, spans[0].Events, 1)
}
