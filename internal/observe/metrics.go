// Package observe carries the OpenTelemetry instruments and trace helpers of the normalization pipeline.
//
// Instruments are created from an explicit metric.MeterProvider so that each Normalizer owns its own set;
// tests use an sdkmetric.ManualReader to inspect them.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/farcloser/cadence"

// Metrics holds the pipeline instruments. All fields are safe for concurrent use.
type Metrics struct {
	// TranscodeDuration tracks the latency of one transcoder call. Attributes: op, status.
	TranscodeDuration metric.Float64Histogram

	// TranscodeCalls counts transcoder calls. Attributes: op, status.
	TranscodeCalls metric.Int64Counter

	// SegmentFallbacks counts tempo runs that kept their untransformed audio after a failed call.
	SegmentFallbacks metric.Int64Counter

	// Outcomes counts finished clips. Attribute: status.
	Outcomes metric.Int64Counter

	// Iterations tracks correction passes per clip.
	Iterations metric.Int64Histogram

	// ActiveClips tracks clips currently in the pipeline.
	ActiveClips metric.Int64UpDownCounter
}

// Seconds, sized for external process round trips on narration clips.
var transcodeBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	met := &Metrics{}

	var err error

	if met.TranscodeDuration, err = meter.Float64Histogram("cadence.transcode.duration",
		metric.WithDescription("Latency of gain and tempo transcoder calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(transcodeBuckets...),
	); err != nil {
		return nil, err
	}

	if met.TranscodeCalls, err = meter.Int64Counter("cadence.transcode.calls",
		metric.WithDescription("Transcoder calls by operation and status."),
	); err != nil {
		return nil, err
	}

	if met.SegmentFallbacks, err = meter.Int64Counter("cadence.segment.fallbacks",
		metric.WithDescription("Tempo runs left untransformed after a failed call."),
	); err != nil {
		return nil, err
	}

	if met.Outcomes, err = meter.Int64Counter("cadence.clip.outcomes",
		metric.WithDescription("Finished clips by status."),
	); err != nil {
		return nil, err
	}

	if met.Iterations, err = meter.Int64Histogram("cadence.clip.iterations",
		metric.WithDescription("Correction passes used per clip."),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 8),
	); err != nil {
		return nil, err
	}

	if met.ActiveClips, err = meter.Int64UpDownCounter("cadence.clip.active",
		metric.WithDescription("Clips currently being normalized."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordTranscode records one transcoder call.
func (m *Metrics) RecordTranscode(ctx context.Context, op string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	)

	m.TranscodeDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.TranscodeCalls.Add(ctx, 1, attrs)
}

// RecordOutcome records a finished clip.
func (m *Metrics) RecordOutcome(ctx context.Context, status string, iterations int) {
	m.Outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.Iterations.Record(ctx, int64(iterations))
}
