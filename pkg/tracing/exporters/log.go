package exporters

import (
	"context"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to the service log at debug level. It stands in for a
// collector in local runs.
type LogExporter struct {
	logger ectologger.Logger
}

func NewLogExporter(logger ectologger.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	if e.logger == nil {
		return nil
	}
	for _, span := range spans {
		fields := map[string]any{
			"span":        span.Name(),
			"trace_id":    span.SpanContext().TraceID().String(),
			"duration_ms": span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status":      span.Status().Code.String(),
		}
		if parent := span.Parent(); parent.IsValid() {
			fields["parent_span_id"] = parent.SpanID().String()
		}
		e.logger.WithContext(ctx).WithFields(fields).Debug("Span finished")
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}
