package observe

import (
	"context"
	"testing"
	"time"

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

// sumWhere suma los puntos de un counter cuyo atributo key vale value ("" = todos).
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				total += dp.Value
			}
		}
	}
	return total
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordPollCreated(ctx)
	m.RecordPollClosed(ctx, CloseGranted)
	m.RecordNarration(ctx, 10)
	m.RecordNarratorRole(ctx, "grant")
	m.RecordFlush(ctx, FlushOK, time.Millisecond)
}

func TestPollCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPollCreated(ctx)
	m.RecordPollCreated(ctx)
	m.RecordPollClosed(ctx, CloseGranted)
	m.RecordPollClosed(ctx, CloseExpired)
	m.RecordPollClosed(ctx, CloseExpired)

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "guildbot.polls.created", "", ""); got != 2 {
		t.Errorf("polls.created = %d, want 2", got)
	}
	if got := sumWhere(t, rm, "guildbot.polls.closed", "reason", CloseExpired); got != 2 {
		t.Errorf("polls.closed{expired} = %d, want 2", got)
	}
	if got := sumWhere(t, rm, "guildbot.polls.closed", "reason", CloseGranted); got != 1 {
		t.Errorf("polls.closed{granted} = %d, want 1", got)
	}
}

func TestNarrationIgnoresNonPositive(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordNarration(ctx, 120)
	m.RecordNarration(ctx, 0)
	m.RecordNarration(ctx, -5)
	m.RecordNarration(ctx, 30)

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "guildbot.narration.seconds", "", ""); got != 150 {
		t.Errorf("narration.seconds = %d, want 150", got)
	}
}

func TestFlushSkippedRecordsNoDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFlush(ctx, FlushSkipped, 0)
	m.RecordFlush(ctx, FlushOK, 20*time.Millisecond)

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "guildbot.snapshot.flushes", "", ""); got != 2 {
		t.Errorf("flushes = %d, want 2", got)
	}
	met := findMetric(rm, "guildbot.snapshot.flush.duration")
	if met == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration is not a histogram")
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("duration samples = %+v, want exactly one", hist.DataPoints)
	}
}
