// Package telemetry sets up OpenTelemetry tracing for runs.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies fpf spans.
const ServiceName = "fpf"

// Tracer returns the tracer used by the run pipeline. It is a no-op until InitTracer runs.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

// InitTracer installs a tracer provider exporting spans as JSON to w (stderr when nil).
// When enabled is false nothing is installed and the returned shutdown is a no-op.
func InitTracer(enabled bool, w io.Writer, logger *slog.Logger) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	// Runs are short-lived, so spans are exported synchronously
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Debug("OpenTelemetry initialized", slog.String("service", ServiceName))

	return tp.Shutdown, nil
}
