package query

import (
	"context"
	"errors"
	"sync"

	"github.com/jonwraymond/dashquery/cache"
)

// Scope renders a view. Reads issued through r are tracked by the boundary
// so that their failures can be reset.
type Scope func(ctx context.Context, r Reader) (any, error)

// Outcome is the result of rendering a boundary.
type Outcome struct {
	// Value is the scope's result when it rendered.
	Value any

	// Err is the captured failure while Fallback is set, or the context
	// error when a render was abandoned.
	Err error

	// Fallback is set while the boundary shows its failure state.
	Fallback bool

	// Failed lists the keys whose loads failed during the captured render.
	Failed []cache.Key
}

// OK reports whether the scope rendered.
func (o Outcome) OK() bool {
	return !o.Fallback && o.Err == nil
}

// Boundary captures the first failure raised by a scope and offers reset.
//
// Once a render fails the boundary stays in its fallback state: Render
// returns the captured outcome without running the scope. Reset clears every
// failed key from the cache and renders again, which issues fresh loads.
type Boundary struct {
	client *Client
	scope  Scope

	mu       sync.Mutex
	fallback *Outcome
}

// NewBoundary creates a boundary around scope.
func NewBoundary(client *Client, scope Scope) *Boundary {
	return &Boundary{client: client, scope: scope}
}

// Render runs the scope unless the boundary is showing a fallback.
// Context cancellation and supersession abandon the render without
// entering the fallback state. The boundary is not locked while the scope
// runs, so Fallback and Reset do not wait for a render in progress.
func (b *Boundary) Render(ctx context.Context) Outcome {
	if out, failed := b.Fallback(); failed {
		return out
	}
	return b.run(ctx)
}

// Reset clears the failed keys and the fallback, then renders again.
func (b *Boundary) Reset(ctx context.Context) Outcome {
	b.mu.Lock()
	fallback := b.fallback
	b.fallback = nil
	b.mu.Unlock()

	if fallback != nil {
		for _, key := range fallback.Failed {
			b.client.Reset(key)
		}
	}
	return b.run(ctx)
}

// Fallback returns the captured failure, if any.
func (b *Boundary) Fallback() (Outcome, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fallback == nil {
		return Outcome{}, false
	}
	return *b.fallback, true
}

// run renders the scope once. When concurrent renders both fail, the
// first to finish is captured and the others return it.
func (b *Boundary) run(ctx context.Context) Outcome {
	rd := &trackingReader{inner: b.client}
	value, err := b.scope(ctx, rd)
	if err == nil {
		return Outcome{Value: value}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrSuperseded) {
		if _, isLoad := IsLoadError(err); !isLoad {
			return Outcome{Err: err}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fallback != nil {
		return *b.fallback
	}
	b.fallback = &Outcome{Err: err, Fallback: true, Failed: rd.failedKeys()}
	return *b.fallback
}

// trackingReader records keys whose reads settled with a load failure.
type trackingReader struct {
	inner Reader

	mu     sync.Mutex
	failed []cache.Key
}

func (r *trackingReader) Read(ctx context.Context, key cache.Key, load Loader, opts ...ReadOption) *Future {
	f := r.inner.Read(ctx, key, load, opts...)
	f.onSettle = r.record
	return f
}

func (r *trackingReader) record(key cache.Key, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.failed {
		if k.Equal(key) {
			return
		}
	}
	r.failed = append(r.failed, key)
}

func (r *trackingReader) failedKeys() []cache.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cache.Key(nil), r.failed...)
}
