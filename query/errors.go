package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/dashquery/cache"
)

// Sentinel errors for the query package.
var (
	// ErrNilLoader is returned when a read is issued without a loader.
	ErrNilLoader = errors.New("query: loader is nil")

	// ErrSuperseded is returned to waiters of a selection that was replaced
	// by a different key before it resolved.
	ErrSuperseded = errors.New("query: read superseded by a newer selection")

	// ErrTypeMismatch is returned when a cached value is not of the
	// requested type.
	ErrTypeMismatch = errors.New("query: cached value has unexpected type")

	// ErrLoaderPanic wraps a panic recovered from a loader.
	ErrLoaderPanic = errors.New("query: loader panicked")

	// ErrClosed is returned by loads started after the client was closed.
	ErrClosed = errors.New("query: client closed")
)

// LoadError is the failure stored for a key whose load failed.
// Every reader of the key receives the same *LoadError until it is reset.
type LoadError struct {
	Key cache.Key
	At  time.Time
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("query: load %s failed: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err carries a *LoadError and returns it.
func IsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
