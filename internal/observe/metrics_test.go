package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

func TestRecordTranscode(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTranscode(ctx, "tempo", 120*time.Millisecond, nil)
	m.RecordTranscode(ctx, "tempo", 80*time.Millisecond, nil)
	m.RecordTranscode(ctx, "gain", time.Second, errors.New("boom"))

	rm := collect(t, reader)

	calls := findMetric(rm, "cadence.transcode.calls")
	if calls == nil {
		t.Fatal("cadence.transcode.calls not found")
	}

	sum, ok := calls.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("calls data type = %T", calls.Data)
	}

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("op"))
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		got[op.AsString()+"/"+status.AsString()] = dp.Value
	}

	if got["tempo/ok"] != 2 || got["gain/error"] != 1 {
		t.Errorf("calls = %v", got)
	}

	duration := findMetric(rm, "cadence.transcode.duration")
	if duration == nil {
		t.Fatal("cadence.transcode.duration not found")
	}

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data type = %T", duration.Data)
	}

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}

	if count != 3 {
		t.Errorf("histogram count = %d, want 3", count)
	}
}

func TestRecordOutcome(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordOutcome(ctx, "converged", 1)
	m.RecordOutcome(ctx, "failed", 0)

	rm := collect(t, reader)

	outcomes := findMetric(rm, "cadence.clip.outcomes")
	if outcomes == nil {
		t.Fatal("cadence.clip.outcomes not found")
	}

	sum := outcomes.Data.(metricdata.Sum[int64]) //nolint:forcetypeassert // counter
	if len(sum.DataPoints) != 2 {
		t.Errorf("data points = %d, want 2", len(sum.DataPoints))
	}

	if findMetric(rm, "cadence.clip.iterations") == nil {
		t.Error("cadence.clip.iterations not found")
	}
}
