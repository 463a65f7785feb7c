package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/dashquery/resilience"
)

var (
	// ErrTransport wraps failures that produced no HTTP response.
	ErrTransport = errors.New("api: transport error")

	// ErrDecode wraps malformed response bodies.
	ErrDecode = errors.New("api: malformed response")

	// ErrInvalidSlug is returned for an empty document slug.
	ErrInvalidSlug = errors.New("api: invalid slug")

	// ErrInvalidConfig is returned by NewClient for unusable settings.
	ErrInvalidConfig = errors.New("api: invalid config")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the server's "detail" message when the body carried one.
	Detail string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsUpstreamFailure reports whether err should count against the circuit
// breaker: transport errors, requests that ran out of time, 5xx and 429
// responses. Client errors, malformed bodies and caller cancellation do
// not.
func IsUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || resilience.IsRejection(err) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return errors.Is(err, ErrTransport) || errors.Is(err, resilience.ErrTimeout)
}
