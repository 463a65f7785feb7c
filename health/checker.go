package health

import (
	"context"
	"time"
)

// Status is a component's ability to serve reads. Statuses are ordered:
// a larger value is worse.
type Status int

const (
	// StatusHealthy means the component serves reads normally.
	StatusHealthy Status = iota
	// StatusDegraded means reads are served with reduced capacity or from
	// cache while the source is recovering.
	StatusDegraded
	// StatusUnhealthy means the component cannot serve reads.
	StatusUnhealthy
)

var statusNames = [...]string{
	StatusHealthy:   "healthy",
	StatusDegraded:  "degraded",
	StatusUnhealthy: "unhealthy",
}

// String returns "healthy", "degraded", "unhealthy" or "unknown".
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Result is the outcome of one check.
type Result struct {
	Status  Status
	Message string

	// Details carries component metrics such as entry counts.
	Details map[string]any

	Duration  time.Duration
	Timestamp time.Time

	// Error is set for unhealthy results.
	Error error
}

func newResult(s Status, message string, err error) Result {
	return Result{Status: s, Message: message, Error: err, Timestamp: time.Now()}
}

// Healthy creates a healthy result.
func Healthy(message string) Result { return newResult(StatusHealthy, message, nil) }

// Degraded creates a degraded result.
func Degraded(message string) Result { return newResult(StatusDegraded, message, nil) }

// Unhealthy creates an unhealthy result caused by err.
func Unhealthy(message string, err error) Result { return newResult(StatusUnhealthy, message, err) }

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker reports the health of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

type checkFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc returns a Checker named name that calls fn.
func NewCheckerFunc(name string, fn func(context.Context) Result) Checker {
	return checkFunc{name: name, fn: fn}
}

func (c checkFunc) Name() string                     { return c.name }
func (c checkFunc) Check(ctx context.Context) Result { return c.fn(ctx) }
