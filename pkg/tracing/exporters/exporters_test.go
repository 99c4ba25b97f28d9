package exporters

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_WithoutEndpointLogsSpans(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	exporter, err := New(context.Background(), OTLPConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogExporter{}, exporter)
}

func TestNew_UnsupportedProtocol(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	_, err := New(context.Background(), OTLPConfig{Endpoint: "localhost:4317", Protocol: "udp"}, logger)
	assert.ErrorContains(t, err, "udp")
}

func TestLogExporter_ExportSpans(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	now := time.Now()
	spans := tracetest.SpanStubs{
		{Name: "processor.Processor.ProcessOrder", StartTime: now, EndTime: now.Add(5 * time.Millisecond)},
	}.Snapshots()

	exporter := NewLogExporter(logger)
	assert.NoError(t, exporter.ExportSpans(context.Background(), spans))
	assert.NoError(t, exporter.Shutdown(context.Background()))

	var _ trace.SpanExporter = exporter
	assert.NoError(t, NewLogExporter(nil).ExportSpans(context.Background(), spans))
}
