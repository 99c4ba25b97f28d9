package exporters

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultExportTimeout = 10 * time.Second

// OTLPConfig selects the collector spans are shipped to. An empty Endpoint disables shipping.
type OTLPConfig struct {
	Endpoint string // host:port; 4317 for grpc, 4318 for http
	Protocol string // grpc (default) or http
	Insecure bool
	Timeout  time.Duration
}

// New builds the span exporter for config. Without an endpoint spans go to the debug log.
func New(ctx context.Context, config OTLPConfig, logger ectologger.Logger) (trace.SpanExporter, error) {
	if config.Endpoint == "" {
		return NewLogExporter(logger), nil
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultExportTimeout
	}

	var (
		exporter trace.SpanExporter
		err      error
	)
	switch config.Protocol {
	case "", "grpc":
		exporter, err = otlptracegrpc.New(ctx, grpcOptions(config, timeout)...)
	case "http":
		exporter, err = otlptracehttp.New(ctx, httpOptions(config, timeout)...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", config.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s OTLP exporter for %s: %w", config.Protocol, config.Endpoint, err)
	}

	logger.WithFields(map[string]any{
		"endpoint": config.Endpoint,
		"protocol": config.Protocol,
	}).Info("Exporting traces over OTLP")
	return exporter, nil
}

func grpcOptions(config OTLPConfig, timeout time.Duration) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
		otlptracegrpc.WithTimeout(timeout),
	}
	if config.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return opts
}

func httpOptions(config OTLPConfig, timeout time.Duration) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithTimeout(timeout),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}
