package resilience

import (
	"context"
	"time"
)

// Executor composes the guards around one operation.
//
// A nil *Executor is valid and runs operations unguarded.
type Executor struct {
	circuitBreaker *CircuitBreaker
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithTimeout adds a per-operation timeout to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// WithTimeoutConfig adds a prepared timeout to the executor.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// layer is one guard wrapped around the rest of the chain.
type layer func(ctx context.Context, next func(context.Context) error) error

// layers lists the configured guards outermost first: rate limiter,
// bulkhead, circuit breaker, timeout. The timeout is innermost so time
// queued in the bulkhead does not count against the load.
func (e *Executor) layers() []layer {
	var ls []layer
	if e.rateLimiter != nil {
		ls = append(ls, e.rateLimiter.Execute)
	}
	if e.bulkhead != nil {
		ls = append(ls, e.bulkhead.Execute)
	}
	if e.circuitBreaker != nil {
		ls = append(ls, e.circuitBreaker.Execute)
	}
	if e.timeout != nil {
		ls = append(ls, e.timeout.Execute)
	}
	return ls
}

// Execute runs op through the configured guards.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return op(ctx)
	}
	run := op
	ls := e.layers()
	for i := len(ls) - 1; i >= 0; i-- {
		guard, next := ls[i], run
		run = func(ctx context.Context) error { return guard(ctx, next) }
	}
	return run(ctx)
}

// Do runs a value-returning operation through e.
func Do[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// ExecutorStats reports the state of the configured guards.
type ExecutorStats struct {
	Circuit  *CircuitBreakerMetrics
	Bulkhead *BulkheadMetrics
	Tokens   *float64
	Timeout  time.Duration
}

// Stats snapshots the guards. Unconfigured guards are nil.
func (e *Executor) Stats() ExecutorStats {
	var st ExecutorStats
	if e == nil {
		return st
	}
	if e.circuitBreaker != nil {
		m := e.circuitBreaker.Metrics()
		st.Circuit = &m
	}
	if e.bulkhead != nil {
		m := e.bulkhead.Metrics()
		st.Bulkhead = &m
	}
	if e.rateLimiter != nil {
		tokens := e.rateLimiter.Tokens()
		st.Tokens = &tokens
	}
	if e.timeout != nil {
		st.Timeout = e.timeout.Config().Timeout
	}
	return st
}
