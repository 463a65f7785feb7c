package query

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// step is the behavior of one loader invocation. A non-nil gate blocks the
// invocation until it is closed.
type step struct {
	value any
	err   error
	gate  chan struct{}
}

// script is a loader that plays its steps in order, repeating the last one.
type script struct {
	mu      sync.Mutex
	steps   []step
	calls   int
	started chan int
}

func newScript(steps ...step) *script {
	return &script{steps: steps, started: make(chan int, 64)}
}

func (s *script) load(ctx context.Context) (any, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	st := s.steps[len(s.steps)-1]
	if i < len(s.steps) {
		st = s.steps[i]
	}
	s.mu.Unlock()

	s.started <- i
	if st.gate != nil {
		select {
		case <-st.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return st.value, st.err
}

func (s *script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// waitStarted blocks until the n-th invocation (0-based) has started.
func (s *script) waitStarted(t *testing.T, n int) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case i := <-s.started:
			if i == n {
				return
			}
		case <-timeout:
			t.Fatalf("loader invocation %d never started", n)
		}
	}
}

func await(t *testing.T, f *Future) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := f.Await(ctx)
	if err == context.DeadlineExceeded {
		t.Fatalf("Await(%s) timed out", f.Key())
	}
	return v, err
}

// waitFor polls cond until it holds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met")
}

// waitIdle blocks until no load is running for any key.
func waitIdle(t *testing.T, c *Client) {
	t.Helper()
	waitFor(t, func() bool { return c.Stats().Loading == 0 })
}
