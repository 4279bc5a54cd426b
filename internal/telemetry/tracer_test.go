package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	t.Run("disabled", func(t *testing.T) {
		shutdown, err := InitTracer(false, nil, logger)
		if err != nil {
			t.Fatalf("InitTracer() error = %v", err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown() error = %v", err)
		}
	})

	t.Run("enabled exports spans", func(t *testing.T) {
		var buf bytes.Buffer
		shutdown, err := InitTracer(true, &buf, logger)
		if err != nil {
			t.Fatalf("InitTracer() error = %v", err)
		}

		_, span := Tracer().Start(context.Background(), "fpf.run")
		span.End()

		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown() error = %v", err)
		}
		if !strings.Contains(buf.String(), `"fpf.run"`) {
			t.Errorf("exported spans = %s, want fpf.run", buf.String())
		}
	})
}
