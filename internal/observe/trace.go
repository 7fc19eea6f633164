package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/farcloser/cadence"

// StartSpan starts a span on the globally registered tracer provider. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// Logger returns the default logger, with trace_id and span_id when ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		logger = logger.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return logger
}
