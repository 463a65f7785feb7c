package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/dashquery/query"
	"github.com/jonwraymond/dashquery/resilience"
)

// QueryChecker reports the query cache: entry counts by status and the
// load bulkhead. It is degraded while every load slot is taken.
type QueryChecker struct {
	client *query.Client
}

// NewQueryChecker creates a checker for client.
func NewQueryChecker(client *query.Client) *QueryChecker {
	return &QueryChecker{client: client}
}

// Name returns "query".
func (c *QueryChecker) Name() string {
	return "query"
}

// Check summarizes the store and the load guard.
func (c *QueryChecker) Check(context.Context) Result {
	st := c.client.Stats()
	details := map[string]any{
		"entries": st.Total,
		"pending": st.Pending,
		"success": st.Success,
		"error":   st.Error,
		"loading": st.Loading,
	}

	guard := c.client.Guard().Stats()
	if b := guard.Bulkhead; b != nil {
		details["loads_active"] = b.Active
		details["loads_max"] = b.MaxConcurrent
		details["loads_rejected"] = b.Rejected
		if b.Available == 0 {
			return Degraded("load capacity exhausted").WithDetails(details)
		}
	}
	return Healthy(fmt.Sprintf("%d entries", st.Total)).WithDetails(details)
}

// UpstreamChecker reports the backend API: the circuit breaker guarding it
// and a ping such as a version request.
type UpstreamChecker struct {
	ping  func(ctx context.Context) error
	guard *resilience.Executor
}

// NewUpstreamChecker creates a checker. guard may be nil.
func NewUpstreamChecker(ping func(ctx context.Context) error, guard *resilience.Executor) *UpstreamChecker {
	return &UpstreamChecker{ping: ping, guard: guard}
}

// Name returns "upstream".
func (c *UpstreamChecker) Name() string {
	return "upstream"
}

// Check is unhealthy while the circuit is open or the ping fails, and
// degraded while the circuit is probing.
func (c *UpstreamChecker) Check(ctx context.Context) Result {
	details := map[string]any{}
	state := resilience.StateClosed
	if cb := c.guard.Stats().Circuit; cb != nil {
		state = cb.State
		details["circuit"] = cb.State.String()
		details["failures"] = cb.Failures
	}
	if state == resilience.StateOpen {
		return Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	}

	if err := c.ping(ctx); err != nil {
		return Unhealthy("upstream unreachable", err).WithDetails(details)
	}
	if state == resilience.StateHalfOpen {
		return Degraded("circuit half-open").WithDetails(details)
	}
	return Healthy("upstream reachable").WithDetails(details)
}

// PingChecker adapts a ping function, such as a Redis PING, to Checker.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker creates a named checker that is unhealthy when ping fails.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// Name returns the checker name.
func (c *PingChecker) Name() string {
	return c.name
}

// Check runs the ping.
func (c *PingChecker) Check(ctx context.Context) Result {
	if err := c.ping(ctx); err != nil {
		return Unhealthy(c.name+" unreachable", err)
	}
	return Healthy(c.name + " reachable")
}
