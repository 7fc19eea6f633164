package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanAndLogger(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	var buf bytes.Buffer

	origLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(origLogger) })

	ctx, span := StartSpan(context.Background(), "cadence.test")
	Logger(ctx).Info("inside")
	span.End()

	if !strings.Contains(buf.String(), `"trace_id"`) {
		t.Errorf("log line lacks trace_id: %s", buf.String())
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "cadence.test" {
		t.Errorf("spans = %v", spans)
	}

	buf.Reset()
	Logger(context.Background()).Info("outside")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log line without span carries trace_id: %s", buf.String())
	}
}
