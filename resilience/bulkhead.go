package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// WaitForever as BulkheadConfig.MaxWait queues callers until a slot frees
// up or their context ends.
const WaitForever time.Duration = -1

const defaultMaxConcurrent = 10

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent caps operations in progress. Default: 10.
	MaxConcurrent int

	// MaxWait bounds how long Acquire queues for a slot. Zero rejects
	// immediately when full; WaitForever waits on the context alone.
	MaxWait time.Duration
}

// Bulkhead caps the number of loads running at once. Slots are tokens in
// a buffered channel; a full channel means every slot is taken.
type Bulkhead struct {
	slots   chan struct{}
	maxWait time.Duration

	active    atomic.Int64
	peak      atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	n := config.MaxConcurrent
	if n <= 0 {
		n = defaultMaxConcurrent
	}
	return &Bulkhead{
		slots:   make(chan struct{}, n),
		maxWait: config.MaxWait,
	}
}

// Acquire takes a slot. It returns ErrBulkheadFull when no slot frees up
// within MaxWait and the context error when ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case b.slots <- struct{}{}:
		b.enter()
		return nil
	default:
	}
	if b.maxWait == 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	// A nil channel never fires, so WaitForever only listens to ctx.
	var deadline <-chan time.Time
	if b.maxWait > 0 {
		t := time.NewTimer(b.maxWait)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case b.slots <- struct{}{}:
		b.enter()
		return nil
	case <-deadline:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) enter() {
	n := b.active.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Release frees a slot taken by Acquire. Releasing without a matching
// Acquire is a no-op.
func (b *Bulkhead) Release() {
	select {
	case <-b.slots:
		b.active.Add(-1)
		b.completed.Add(1)
	default:
	}
}

// Execute runs op while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// BulkheadMetrics is a snapshot of bulkhead usage.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
	Completed     int64
}

// Metrics returns a snapshot. Counters are read independently, so a
// snapshot taken under load may be off by one between fields.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	active := int(b.active.Load())
	size := cap(b.slots)
	return BulkheadMetrics{
		Active:        active,
		MaxActive:     int(b.peak.Load()),
		Available:     max(size-active, 0),
		MaxConcurrent: size,
		Rejected:      b.rejected.Load(),
		Completed:     b.completed.Load(),
	}
}
