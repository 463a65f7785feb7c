package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/dashquery/cache"
)

func TestBoundary_ResetClearsError(t *testing.T) {
	boom := errors.New("HTTP 500")
	docKey := cache.MustKey("docs", "projects", "a")
	s := newScript(step{err: boom}, step{value: "# A"})
	c := NewClient()
	defer c.Close()

	b := NewBoundary(c, func(ctx context.Context, r Reader) (any, error) {
		return r.Read(ctx, docKey, s.load).Await(ctx)
	})

	out := b.Render(context.Background())
	if !out.Fallback || !errors.Is(out.Err, boom) {
		t.Fatalf("Render() = %+v, want fallback with %v", out, boom)
	}
	if len(out.Failed) != 1 || !out.Failed[0].Equal(docKey) {
		t.Errorf("Failed = %v, want [%s]", out.Failed, docKey)
	}

	if again := b.Render(context.Background()); !again.Fallback {
		t.Error("boundary left fallback without reset")
	}
	if s.Calls() != 1 {
		t.Fatalf("loader calls before reset = %d, want 1", s.Calls())
	}
	if _, ok := b.Fallback(); !ok {
		t.Error("Fallback() = false while failed")
	}

	out = b.Reset(context.Background())
	if !out.OK() || out.Value != "# A" {
		t.Fatalf("Reset() = %+v, want rendered # A", out)
	}
	if s.Calls() != 2 {
		t.Errorf("loader calls after reset = %d, want 2", s.Calls())
	}
	entry, _ := c.Peek(docKey)
	if entry.Status != cache.StatusSuccess {
		t.Errorf("entry after reset = %s, want success", entry.Status)
	}
	if _, ok := b.Fallback(); ok {
		t.Error("Fallback() still set after successful reset")
	}
}

func TestBoundary_FailureIsKeyLocal(t *testing.T) {
	list := newScript(step{value: []string{"a"}})
	content := newScript(step{err: errors.New("404")}, step{value: "# A"})
	docKey := cache.MustKey("docs", "projects", "a")
	c := NewClient(WithPolicy(cache.DocsPolicy()))
	defer c.Close()

	b := NewBoundary(c, func(ctx context.Context, r Reader) (any, error) {
		slugs, err := Fetch(ctx, r, listKey, func(ctx context.Context) ([]string, error) {
			v, err := list.load(ctx)
			if err != nil {
				return nil, err
			}
			return v.([]string), nil
		})
		if err != nil {
			return nil, err
		}
		key, err := listKey.Append(slugs[0])
		if err != nil {
			return nil, err
		}
		return r.Read(ctx, key, content.load).Await(ctx)
	})

	out := b.Render(context.Background())
	if !out.Fallback || len(out.Failed) != 1 || !out.Failed[0].Equal(docKey) {
		t.Fatalf("Render() = %+v, want only the doc key failed", out)
	}

	entry, _ := c.Peek(listKey)
	if entry.Status != cache.StatusSuccess {
		t.Errorf("list entry = %s, want success", entry.Status)
	}

	if out := b.Reset(context.Background()); !out.OK() {
		t.Fatalf("Reset() = %+v", out)
	}
	if list.Calls() != 1 {
		t.Errorf("list loader calls = %d, want 1: reset must not touch the list", list.Calls())
	}
	if content.Calls() != 2 {
		t.Errorf("content loader calls = %d, want 2", content.Calls())
	}
}

func TestBoundary_CancellationIsNotAFailure(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	c := NewClient()
	defer c.Close()

	b := NewBoundary(c, func(ctx context.Context, r Reader) (any, error) {
		return r.Read(ctx, listKey, newScript(step{gate: gate}).load).Await(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := b.Render(ctx)
	if out.Fallback || !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Render() = %+v, want abandoned render", out)
	}
	if _, ok := b.Fallback(); ok {
		t.Error("cancellation entered fallback")
	}
}

func TestBoundary_ScopeErrorWithoutKeys(t *testing.T) {
	c := NewClient()
	defer c.Close()
	renderErr := errors.New("template failed")
	calls := 0

	b := NewBoundary(c, func(ctx context.Context, r Reader) (any, error) {
		calls++
		if calls == 1 {
			return nil, renderErr
		}
		return "ok", nil
	})

	if out := b.Render(context.Background()); !out.Fallback || len(out.Failed) != 0 {
		t.Fatalf("Render() = %+v", out)
	}
	if out := b.Reset(context.Background()); !out.OK() || out.Value != "ok" {
		t.Errorf("Reset() = %+v", out)
	}
}

func TestBoundary_TracksSelectorReads(t *testing.T) {
	boom := errors.New("HTTP 502")
	docKey := cache.MustKey("docs", "projects", "b")
	s := newScript(step{err: boom}, step{value: "# B"})
	c := NewClient()
	defer c.Close()
	sel := NewSelector(c)

	b := NewBoundary(c, func(ctx context.Context, r Reader) (any, error) {
		return sel.Via(r).Read(ctx, docKey, s.load).Await(ctx)
	})

	out := b.Render(context.Background())
	if !out.Fallback || len(out.Failed) != 1 || !out.Failed[0].Equal(docKey) {
		t.Fatalf("Render() = %+v, want fallback on %s", out, docKey)
	}
	if !sel.Current().Equal(docKey) {
		t.Errorf("Current() = %s, want %s", sel.Current(), docKey)
	}
	if out = b.Reset(context.Background()); !out.OK() || out.Value != "# B" {
		t.Errorf("Reset() = %+v", out)
	}
}

func TestBoundary_FallbackDoesNotWaitForRender(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := NewClient()
	defer c.Close()

	b := NewBoundary(c, func(ctx context.Context, r Reader) (any, error) {
		close(started)
		<-release
		return "# A", nil
	})

	done := make(chan Outcome, 1)
	go func() { done <- b.Render(context.Background()) }()
	<-started

	checked := make(chan bool, 1)
	go func() {
		_, failed := b.Fallback()
		checked <- failed
	}()
	select {
	case failed := <-checked:
		if failed {
			t.Error("Fallback() = true during a render that has not failed")
		}
	case <-time.After(time.Second):
		t.Fatal("Fallback() blocked behind a render in progress")
	}

	close(release)
	if out := <-done; !out.OK() || out.Value != "# A" {
		t.Errorf("Render() = %+v", out)
	}
}

func TestBoundary_ConcurrentFailuresCaptureOnce(t *testing.T) {
	boom := errors.New("HTTP 500")
	release := make(chan struct{})
	c := NewClient()
	defer c.Close()

	var calls atomic.Int32
	b := NewBoundary(c, func(context.Context, Reader) (any, error) {
		calls.Add(1)
		<-release
		return nil, boom
	})

	outs := make(chan Outcome, 2)
	for range 2 {
		go func() { outs <- b.Render(context.Background()) }()
	}
	waitFor(t, func() bool { return calls.Load() == 2 })
	close(release)

	first, second := <-outs, <-outs
	if !first.Fallback || !second.Fallback || first.Err != second.Err {
		t.Errorf("outcomes = %+v, %+v, want one shared fallback", first, second)
	}
	captured, ok := b.Fallback()
	if !ok || captured.Err != first.Err {
		t.Errorf("Fallback() = %+v, %v", captured, ok)
	}
}
