// Package observe records audio2subs metrics through the OpenTelemetry
// Metrics API and renders them for Prometheus scraping.
//
// Tests should build a Metrics with NewMetrics and an sdkmetric
// ManualReader; production code uses InitProvider and Serve.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "audio2subs"

// Metrics holds the instruments. A nil *Metrics records nothing.
type Metrics struct {
	// ChunkDuration is the wall time from claim to result for a chunk
	// attempt. Attributes: backend, outcome.
	ChunkDuration metric.Float64Histogram
	// ChunkAttempts counts attempts by backend and outcome.
	ChunkAttempts metric.Int64Counter
	// AssemblyDuration is the time spent in one incremental assembly pass.
	AssemblyDuration metric.Float64Histogram
	// Publishes counts subtitle writes by status.
	Publishes metric.Int64Counter
	// SubtitleLines is the line count of the last published document.
	SubtitleLines metric.Int64Gauge
	// SeekDemotions counts in-flight chunks demoted by seeks.
	SeekDemotions metric.Int64Counter
	// DuplicateWords counts words dropped by the overlap merge.
	DuplicateWords metric.Int64Counter
	// ActiveSessions is the number of open per-video sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// chunkBuckets cover local GPU runs through slow CPU or remote backends.
var chunkBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320}

var assemblyBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.ChunkDuration, err = m.Float64Histogram("audio2subs.chunk.duration",
		metric.WithDescription("Wall time of one chunk transcription attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(chunkBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChunkAttempts, err = m.Int64Counter("audio2subs.chunk.attempts",
		metric.WithDescription("Chunk transcription attempts by backend and outcome."),
	); err != nil {
		return nil, err
	}
	if met.AssemblyDuration, err = m.Float64Histogram("audio2subs.assembly.duration",
		metric.WithDescription("Time spent re-assembling the dirty window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(assemblyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Publishes, err = m.Int64Counter("audio2subs.publish.writes",
		metric.WithDescription("Subtitle file writes by status."),
	); err != nil {
		return nil, err
	}
	if met.SubtitleLines, err = m.Int64Gauge("audio2subs.subtitle.lines",
		metric.WithDescription("Line count of the last published subtitle document."),
	); err != nil {
		return nil, err
	}
	if met.SeekDemotions, err = m.Int64Counter("audio2subs.seek.demotions",
		metric.WithDescription("In-flight chunks demoted by a seek."),
	); err != nil {
		return nil, err
	}
	if met.DuplicateWords, err = m.Int64Counter("audio2subs.aggregate.duplicates",
		metric.WithDescription("Words discarded as overlap duplicates."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("audio2subs.sessions.active",
		metric.WithDescription("Open per-video transcription sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// NewNopMetrics returns instruments that record nothing.
func NewNopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordChunk records one finished attempt.
func (m *Metrics) RecordChunk(ctx context.Context, backend, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	)
	m.ChunkAttempts.Add(ctx, 1, attrs)
	m.ChunkDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordAssembly records one assembly pass.
func (m *Metrics) RecordAssembly(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AssemblyDuration.Record(ctx, elapsed.Seconds())
}

// RecordPublish records a write attempt and, on success, the line count.
func (m *Metrics) RecordPublish(ctx context.Context, err error, lines int) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Publishes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if err == nil {
		m.SubtitleLines.Record(ctx, int64(lines))
	}
}

// AddDemotions counts demoted chunks.
func (m *Metrics) AddDemotions(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SeekDemotions.Add(ctx, int64(n))
}

// AddDuplicates counts dropped duplicate words.
func (m *Metrics) AddDuplicates(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicateWords.Add(ctx, int64(n))
}

// SessionOpened increments the active session gauge; the returned function
// decrements it.
func (m *Metrics) SessionOpened(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	m.ActiveSessions.Add(ctx, 1)
	return func() { m.ActiveSessions.Add(context.Background(), -1) }
}
