package query

import (
	"context"
	"sync"

	"github.com/jonwraymond/dashquery/cache"
	"github.com/jonwraymond/dashquery/observe"
)

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Future is the result of a read.
//
// A future is either resolved at creation (served from the cache) or bound
// to the in-flight load for its key. All futures bound to the same load
// observe the same value or error.
type Future struct {
	key     cache.Key
	outcome observe.ReadOutcome

	// resolved at creation
	value any
	err   error

	// bound to a load; nil when resolved at creation
	fl *flight

	refresh *flight

	supersedeOnce sync.Once
	superseded    chan struct{}

	onSettle func(key cache.Key, err error)
}

func resolvedFuture(key cache.Key, outcome observe.ReadOutcome, value any, err error) *Future {
	return &Future{
		key:        key,
		outcome:    outcome,
		value:      value,
		err:        err,
		superseded: make(chan struct{}),
	}
}

func boundFuture(key cache.Key, outcome observe.ReadOutcome, fl *flight) *Future {
	return &Future{
		key:        key,
		outcome:    outcome,
		fl:         fl,
		superseded: make(chan struct{}),
	}
}

// Key returns the key the future reads.
func (f *Future) Key() cache.Key {
	return f.key
}

// Outcome reports how the read was served.
func (f *Future) Outcome() observe.ReadOutcome {
	return f.outcome
}

// Suspended reports whether the read had to wait for a load, that is
// whether the key had no servable value when it was read.
func (f *Future) Suspended() bool {
	return f.fl != nil
}

// Done returns a channel closed once the future's value is available.
func (f *Future) Done() <-chan struct{} {
	if f.fl == nil {
		return closedChan
	}
	return f.fl.done
}

// Ready reports whether Await would return without blocking.
func (f *Future) Ready() bool {
	select {
	case <-f.Done():
		return true
	case <-f.superseded:
		return true
	default:
		return false
	}
}

// Await blocks until the value is available, the selection is superseded or
// ctx ends. Cancelling ctx releases only this waiter; the load continues for
// the other waiters and for the cache.
func (f *Future) Await(ctx context.Context) (any, error) {
	if f.fl == nil {
		f.settle(f.err)
		return f.value, f.err
	}

	select {
	case <-f.fl.done:
	case <-f.superseded:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case <-f.superseded:
		return nil, ErrSuperseded
	default:
	}

	f.settle(f.fl.err)
	return f.fl.value, f.fl.err
}

// Revalidation returns a future for the background refresh started or
// joined by this read, or nil when none is running. It resolves to the
// refreshed value, or to the refresh error while the entry keeps serving
// the previous value.
func (f *Future) Revalidation() *Future {
	if f.refresh == nil {
		return nil
	}
	return boundFuture(f.key, observe.OutcomeDedup, f.refresh)
}

// supersede releases waiters with ErrSuperseded unless the value was
// already available.
func (f *Future) supersede() {
	select {
	case <-f.Done():
		return
	default:
	}
	f.supersedeOnce.Do(func() { close(f.superseded) })
}

func (f *Future) settle(err error) {
	if f.onSettle == nil || err == nil {
		return
	}
	if _, ok := IsLoadError(err); ok {
		f.onSettle(f.key, err)
	}
}
