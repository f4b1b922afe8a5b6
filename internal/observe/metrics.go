// Package observe agrupa las métricas OpenTelemetry del bot y el bridge a Prometheus.
//
// Un *Metrics nil es válido: todos los Record* son no-op. Así los tests de
// servicio no necesitan un MeterProvider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/jose-valero/guild-keeper-bot"

// Razones de cierre de una encuesta.
const (
	CloseGranted = "granted"
	CloseExpired = "expired"
	CloseDeleted = "deleted"
	CloseLeft    = "left"
	CloseManual  = "manual"
)

// Resultados de un flush.
const (
	FlushOK      = "ok"
	FlushSkipped = "skipped"
	FlushError   = "error"
)

type Metrics struct {
	PollsCreated     metric.Int64Counter
	PollsClosed      metric.Int64Counter // attr reason
	NarrationSeconds metric.Int64Counter
	NarratorRoles    metric.Int64Counter // attr action = grant|revoke
	SnapshotFlushes  metric.Int64Counter // attr result
	FlushDuration    metric.Float64Histogram
}

var flushBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PollsCreated, err = m.Int64Counter("guildbot.polls.created",
		metric.WithDescription("Membership polls posted."),
	); err != nil {
		return nil, err
	}
	if met.PollsClosed, err = m.Int64Counter("guildbot.polls.closed",
		metric.WithDescription("Membership polls closed, by reason."),
	); err != nil {
		return nil, err
	}
	if met.NarrationSeconds, err = m.Int64Counter("guildbot.narration.seconds",
		metric.WithDescription("Narration seconds credited to accumulators."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.NarratorRoles, err = m.Int64Counter("guildbot.narrator.roles",
		metric.WithDescription("Narrator role grants and revocations."),
	); err != nil {
		return nil, err
	}
	if met.SnapshotFlushes, err = m.Int64Counter("guildbot.snapshot.flushes",
		metric.WithDescription("Snapshot flush attempts, by result."),
	); err != nil {
		return nil, err
	}
	if met.FlushDuration, err = m.Float64Histogram("guildbot.snapshot.flush.duration",
		metric.WithDescription("Time spent writing both snapshot documents."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(flushBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

func (m *Metrics) RecordPollCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.PollsCreated.Add(ctx, 1)
}

func (m *Metrics) RecordPollClosed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.PollsClosed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RecordNarration(ctx context.Context, seconds int64) {
	if m == nil || seconds <= 0 {
		return
	}
	m.NarrationSeconds.Add(ctx, seconds)
}

func (m *Metrics) RecordNarratorRole(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.NarratorRoles.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordFlush cuenta el intento; la duración solo se observa si hubo escritura.
func (m *Metrics) RecordFlush(ctx context.Context, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.SnapshotFlushes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	if result != FlushSkipped {
		m.FlushDuration.Record(ctx, d.Seconds())
	}
}
