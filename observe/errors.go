package observe

import "errors"

// Config.Validate wraps these.
var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample percentage must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")
)

// ErrNilObserver is returned by MiddlewareFromObserver for a nil observer.
var ErrNilObserver = errors.New("observe: observer is nil")

// RedactedFields are matched case-insensitively as substrings of a field
// key, so "access_token" and "redis_password" are redacted too.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"authorization",
	"credential",
}
