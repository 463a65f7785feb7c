package observe

import (
	"context"
	"time"
)

// LoadFunc is the signature of an instrumented loader invocation.
type LoadFunc func(ctx context.Context) (any, error)

// Middleware wraps loader invocations with tracing, metrics and logging,
// and records read outcomes.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is propagated to the wrapped loader.
//   - Errors: loader errors are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Load runs fn inside a span and records its duration and outcome.
func (m *Middleware) Load(ctx context.Context, meta QueryMeta, fn LoadFunc) (any, error) {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	value, err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordLoad(ctx, meta, duration, err)

	logger := m.logger.WithQuery(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Warn(ctx, "query load failed", fields...)
	} else {
		logger.Debug(ctx, "query load completed", fields...)
	}

	return value, err
}

// Read records how a read was served.
func (m *Middleware) Read(ctx context.Context, meta QueryMeta, outcome ReadOutcome) {
	m.metrics.RecordRead(ctx, meta, outcome)
}
