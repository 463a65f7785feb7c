package cache

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an Entry.
//
//	empty -> pending -> {success, error}
//	error  -> (evict) -> empty
//	success stays servable; once stale it may be refreshed in place.
type Status int

const (
	// StatusEmpty means no load has been attempted.
	StatusEmpty Status = iota
	// StatusPending means a load is in flight and no value exists yet.
	StatusPending
	// StatusSuccess means a value is present.
	StatusSuccess
	// StatusError means the last load failed and no value exists.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// NeverStale as a StaleAfter value keeps an entry fresh forever.
const NeverStale time.Duration = -1

// Entry is the stored state for one Key.
type Entry struct {
	// Status is the lifecycle state.
	Status Status

	// Value is the loader payload. Set only when Status is StatusSuccess.
	Value any

	// Err is the failure cause. Set only when Status is StatusError.
	Err error

	// FetchedAt is the time of the last successful resolution.
	FetchedAt time.Time

	// StaleAfter is how long after FetchedAt the value stays fresh.
	// Zero means stale immediately; NeverStale disables staleness.
	StaleAfter time.Duration

	// InFlight identifies the running load for this key. Zero means none.
	// Only the load carrying this id may write the entry.
	InFlight uint64

	// UpdatedAt is the time of the last write of any kind.
	UpdatedAt time.Time

	// RefreshErr records a failed background refresh of a success entry.
	// The previous value stays servable.
	RefreshErr error
}

// IsStale reports whether a success entry is past its staleness window.
// Non-success entries are never stale.
func (e Entry) IsStale(now time.Time) bool {
	if e.Status != StatusSuccess || e.StaleAfter < 0 {
		return false
	}
	return now.Sub(e.FetchedAt) >= e.StaleAfter
}

// IsFresh reports whether the entry can be served without any load.
func (e Entry) IsFresh(now time.Time) bool {
	return e.Status == StatusSuccess && !e.IsStale(now)
}

// Loading reports whether a load is running for the entry.
func (e Entry) Loading() bool {
	return e.InFlight != 0
}

// Validate checks the entry's state invariants.
func (e Entry) Validate() error {
	switch e.Status {
	case StatusEmpty:
		if e.Value != nil || e.Err != nil {
			return fmt.Errorf("%w: empty entry carries data", ErrInvalidEntry)
		}
	case StatusPending:
		if e.InFlight == 0 {
			return fmt.Errorf("%w: pending entry without in-flight handle", ErrInvalidEntry)
		}
		if e.Err != nil {
			return fmt.Errorf("%w: pending entry carries error", ErrInvalidEntry)
		}
	case StatusSuccess:
		if e.Err != nil {
			return fmt.Errorf("%w: success entry carries error", ErrInvalidEntry)
		}
		if e.FetchedAt.IsZero() {
			return fmt.Errorf("%w: success entry without fetch time", ErrInvalidEntry)
		}
	case StatusError:
		if e.Err == nil {
			return fmt.Errorf("%w: error entry without cause", ErrInvalidEntry)
		}
		if e.Value != nil {
			return fmt.Errorf("%w: error entry carries value", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown status %d", ErrInvalidEntry, int(e.Status))
	}
	return nil
}
