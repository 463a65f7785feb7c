package query

import (
	"context"
	"sync"

	"github.com/jonwraymond/dashquery/cache"
)

// Selector tracks the key a view is currently parked on, such as the
// selected documentation slug.
//
// Reading a different key supersedes the previous selection: its waiters
// are released with ErrSuperseded and never receive the new key's value.
// The previous load is not cancelled; it completes into its own key's entry
// if it still owns it.
type Selector struct {
	reader Reader

	mu      sync.Mutex
	current cache.Key
	pending *Future
}

var _ Reader = (*Selector)(nil)

// NewSelector creates a Selector reading through r.
func NewSelector(r Reader) *Selector {
	return &Selector{reader: r}
}

// Read selects key and reads it.
func (s *Selector) Read(ctx context.Context, key cache.Key, load Loader, opts ...ReadOption) *Future {
	return s.read(ctx, s.reader, key, load, opts)
}

// Via returns a Reader that selects like s but reads through r, e.g. the
// tracked reader a Boundary hands to its scope.
func (s *Selector) Via(r Reader) Reader {
	return readerFunc(func(ctx context.Context, key cache.Key, load Loader, opts ...ReadOption) *Future {
		return s.read(ctx, r, key, load, opts)
	})
}

func (s *Selector) read(ctx context.Context, r Reader, key cache.Key, load Loader, opts []ReadOption) *Future {
	f := r.Read(ctx, key, load, opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil && !s.current.Equal(key) {
		s.pending.supersede()
	}
	s.current = key
	s.pending = f
	return f
}

type readerFunc func(ctx context.Context, key cache.Key, load Loader, opts ...ReadOption) *Future

func (f readerFunc) Read(ctx context.Context, key cache.Key, load Loader, opts ...ReadOption) *Future {
	return f(ctx, key, load, opts...)
}

// Current returns the selected key, or the zero Key before any read.
func (s *Selector) Current() cache.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Clear drops the selection, superseding a read still waiting.
func (s *Selector) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.supersede()
	}
	s.current = cache.Key{}
	s.pending = nil
}
