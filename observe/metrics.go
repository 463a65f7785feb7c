package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReadOutcome classifies how a read was served.
type ReadOutcome string

const (
	// OutcomeHit is a fresh cached value served without loading.
	OutcomeHit ReadOutcome = "hit"
	// OutcomeStale is a cached value served while a refresh runs.
	OutcomeStale ReadOutcome = "stale"
	// OutcomeMiss started a new load and suspended the reader.
	OutcomeMiss ReadOutcome = "miss"
	// OutcomeDedup attached the reader to an in-flight load.
	OutcomeDedup ReadOutcome = "dedup"
	// OutcomeError served a stored load failure.
	OutcomeError ReadOutcome = "error"
)

// Metrics records query metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLoad records one loader invocation.
	RecordLoad(ctx context.Context, meta QueryMeta, duration time.Duration, err error)

	// RecordRead records how a read was served.
	RecordRead(ctx context.Context, meta QueryMeta, outcome ReadOutcome)
}

type metricsImpl struct {
	loadCount    metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	readCount    metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	loadCount, err := meter.Int64Counter(
		"query.load.total",
		metric.WithDescription("Total number of loader invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"query.load.errors",
		metric.WithDescription("Total number of failed loader invocations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"query.load.duration_ms",
		metric.WithDescription("Loader duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	readCount, err := meter.Int64Counter(
		"query.read.total",
		metric.WithDescription("Reads by outcome"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		loadCount:    loadCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		readCount:    readCount,
	}, nil
}

// RecordLoad records metrics for a loader invocation.
func (m *metricsImpl) RecordLoad(ctx context.Context, meta QueryMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.loadCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordRead records the outcome of a read.
func (m *metricsImpl) RecordRead(ctx context.Context, meta QueryMeta, outcome ReadOutcome) {
	m.readCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("query.kind", meta.Kind),
		attribute.String("query.outcome", string(outcome)),
	))
}

type noopMetrics struct{}

func (noopMetrics) RecordLoad(context.Context, QueryMeta, time.Duration, error) {}
func (noopMetrics) RecordRead(context.Context, QueryMeta, ReadOutcome)          {}
