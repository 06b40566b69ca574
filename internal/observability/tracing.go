// Package observability wires tracing and metrics for the assistant.
//
// Tracing rides on Genkit's TracerProvider: Genkit already opens spans for
// every flow and model call, so registering an OTLP span processor exports
// the whole turn (classification, verification, generation, summarization)
// without manual instrumentation. Metrics are Prometheus collectors exposed
// on the serve-mode /metrics endpoint; domain packages record through the
// Observe helpers in this package.
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/askdw/askdw/internal/log"
)

// TracingConfig for OTLP trace export.
type TracingConfig struct {
	// Endpoint is the OTLP HTTP collector, host:port. Empty disables tracing.
	Endpoint string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
	// ServiceName is the service name spans are reported under.
	ServiceName string
	// Logger for setup diagnostics. Defaults to a no-op logger.
	Logger log.Logger
}

// SetupTracing registers an OTLP HTTP exporter with Genkit's TracerProvider.
// Export failures never break the assistant: when the exporter cannot be
// created the setup logs a warning and tracing stays off.
//
// Returns a shutdown function that flushes pending spans. With an empty
// Endpoint the returned shutdown is a no-op.
func SetupTracing(ctx context.Context, cfg TracingConfig) (shutdown func(context.Context) error, err error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop, nil
	}

	// Genkit's TracerProvider reads the standard OTEL resource variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	// Collector endpoints are local agents or sidecars; TLS terminates there.
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create otlp exporter, tracing disabled", "endpoint", cfg.Endpoint, "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("otlp tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
