package exporters

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

// NewConsoleExporter returns a span exporter that pretty-prints spans to
// stdout. Used when no OTLP endpoint is configured.
func NewConsoleExporter() (trace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(os.Stdout),
		stdouttrace.WithPrettyPrint(),
	)
}

// NoopExporter drops all spans. Used in tests and when tracing is disabled.
type NoopExporter struct{}

func (n *NoopExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *NoopExporter) Shutdown(ctx context.Context) error {
	return nil
}
