package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/dashquery/cache"
	"github.com/jonwraymond/dashquery/observe"
	"github.com/jonwraymond/dashquery/resilience"
)

// Loader fetches the value for one key. It should honor ctx; the client
// cancels it when the load times out or the client is closed.
type Loader func(ctx context.Context) (any, error)

// Reader issues reads. *Client, *Selector and the reader handed to a
// boundary Scope implement it.
type Reader interface {
	Read(ctx context.Context, key cache.Key, load Loader, opts ...ReadOption) *Future
}

// flight is one loader invocation shared by every reader of its key.
type flight struct {
	id         uint64
	key        cache.Key
	refresh    bool
	staleAfter time.Duration
	meta       observe.QueryMeta

	done  chan struct{}
	value any
	err   error
}

// Client is the process-wide query cache.
//
// Contract:
//   - Concurrency: safe for concurrent use. Entry transitions are serialized
//     by a client-wide mutex; loaders run outside it.
//   - Dedup: at most one load per key is in flight at any time.
//   - Ownership: only the load whose handle id is on the entry may write it.
//   - Errors: load failures are stored as *LoadError and are sticky until
//     Reset or Invalidate.
type Client struct {
	store       cache.Store
	policy      cache.Policy
	mw          *observe.Middleware
	guard       *resilience.Executor
	now         func() time.Time
	retryOnRead bool
	loadTimeout time.Duration
	maxLoads    int

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	nextID  uint64
	flights map[string]*flight
}

var _ Reader = (*Client)(nil)

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		policy:  cache.DefaultPolicy(),
		mw:      observe.NopMiddleware(),
		now:     time.Now,
		flights: make(map[string]*flight),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.store == nil {
		c.store = cache.NewMemoryStore()
	}
	if c.guard == nil {
		guards := []resilience.ExecutorOption{resilience.WithTimeout(c.loadTimeout)}
		if c.maxLoads > 0 {
			guards = append(guards, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
				MaxConcurrent: c.maxLoads,
				MaxWait:       resilience.WaitForever,
			})))
		}
		c.guard = resilience.NewExecutor(guards...)
	}
	c.baseCtx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Read serves key from the cache, starting or joining a load as needed:
//
//   - fresh success: resolved future, no load
//   - stale success: resolved future with the cached value; one background
//     refresh runs per key and is exposed by Future.Revalidation
//   - absent, empty: a load starts and the future waits for it
//   - pending: the future joins the running load
//   - error: resolved future carrying the stored *LoadError
func (c *Client) Read(ctx context.Context, key cache.Key, load Loader, opts ...ReadOption) *Future {
	ro := applyReadOptions(opts)
	meta := observe.QueryMeta{Key: key.String(), Kind: ro.kind, Tenant: ro.tenant}

	if key.IsZero() {
		return resolvedFuture(key, observe.OutcomeError, nil, cache.ErrEmptyKey)
	}
	if load == nil {
		return resolvedFuture(key, observe.OutcomeError, nil, ErrNilLoader)
	}

	c.mu.Lock()
	now := c.now()
	entry, ok := c.store.Get(key)

	var (
		f       *Future
		started *flight
	)
	switch {
	case !ok || entry.Status == cache.StatusEmpty:
		started = c.startLocked(key, entry, now, ro, meta, false)
		f = boundFuture(key, observe.OutcomeMiss, started)

	case entry.Status == cache.StatusPending:
		if fl := c.flightLocked(key, entry.InFlight); fl != nil {
			f = boundFuture(key, observe.OutcomeDedup, fl)
		} else {
			started = c.startLocked(key, entry, now, ro, meta, false)
			f = boundFuture(key, observe.OutcomeMiss, started)
		}

	case entry.Status == cache.StatusSuccess:
		if entry.IsFresh(now) {
			f = resolvedFuture(key, observe.OutcomeHit, entry.Value, nil)
			break
		}
		f = resolvedFuture(key, observe.OutcomeStale, entry.Value, nil)
		if fl := c.flightLocked(key, entry.InFlight); fl != nil {
			f.refresh = fl
		} else {
			started = c.startLocked(key, entry, now, ro, meta, true)
			f.refresh = started
		}

	case entry.Status == cache.StatusError:
		if !c.retryOnRead {
			f = resolvedFuture(key, observe.OutcomeError, nil, entry.Err)
			break
		}
		started = c.startLocked(key, entry, now, ro, meta, false)
		f = boundFuture(key, observe.OutcomeMiss, started)
	}
	c.mu.Unlock()

	c.mw.Read(ctx, meta, f.outcome)
	if started != nil {
		go c.run(ctx, started, load)
	}
	return f
}

// flightLocked returns the running flight for key if it carries id.
func (c *Client) flightLocked(key cache.Key, id uint64) *flight {
	if id == 0 {
		return nil
	}
	fl := c.flights[key.String()]
	if fl == nil || fl.id != id {
		return nil
	}
	return fl
}

// startLocked registers a new flight and stamps its id on the entry.
// A refresh keeps the success entry servable; any other load moves the
// entry to pending.
func (c *Client) startLocked(key cache.Key, entry cache.Entry, now time.Time, ro readOptions, meta observe.QueryMeta, refresh bool) *flight {
	c.nextID++
	meta.Refresh = refresh
	fl := &flight{
		id:         c.nextID,
		key:        key,
		refresh:    refresh,
		staleAfter: c.policy.EffectiveStaleAfter(ro.staleAfter),
		meta:       meta,
		done:       make(chan struct{}),
	}
	c.flights[key.String()] = fl

	if refresh {
		entry.InFlight = fl.id
		entry.UpdatedAt = now
	} else {
		entry = cache.Entry{Status: cache.StatusPending, InFlight: fl.id, UpdatedAt: now}
	}
	c.store.Set(key, entry)
	return fl
}

// run invokes the loader outside the client lock. The load keeps the
// initiating reader's context values but not its cancellation: other
// readers may be waiting on it.
func (c *Client) run(readerCtx context.Context, fl *flight, load Loader) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(readerCtx))
	defer cancel()
	stop := context.AfterFunc(c.baseCtx, cancel)
	defer stop()

	var (
		value any
		err   error
	)
	if c.baseCtx.Err() != nil {
		err = ErrClosed
	} else {
		value, err = resilience.Do(ctx, c.guard, func(ctx context.Context) (any, error) {
			return c.mw.Load(ctx, fl.meta, observe.LoadFunc(func(ctx context.Context) (v any, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", ErrLoaderPanic, r)
					}
				}()
				return load(ctx)
			}))
		})
	}
	c.complete(ctx, fl, value, err)
}

// complete writes the result if fl still owns the entry, then releases
// every waiter. The store write happens before waiters are released.
func (c *Client) complete(ctx context.Context, fl *flight, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if err != nil {
		err = &LoadError{Key: fl.key, At: now, Err: err}
	}

	if cur := c.flights[fl.key.String()]; cur == fl {
		delete(c.flights, fl.key.String())
	}

	entry, ok := c.store.Get(fl.key)
	if ok && entry.InFlight == fl.id {
		switch {
		case err == nil:
			entry = cache.Entry{
				Status:     cache.StatusSuccess,
				Value:      value,
				FetchedAt:  now,
				StaleAfter: fl.staleAfter,
				UpdatedAt:  now,
			}
		case fl.refresh && entry.Status == cache.StatusSuccess:
			entry.InFlight = 0
			entry.RefreshErr = err
			entry.UpdatedAt = now
		default:
			entry = cache.Entry{Status: cache.StatusError, Err: err, UpdatedAt: now}
		}
		c.store.Set(fl.key, entry)
	} else {
		c.mw.Logger().WithQuery(fl.meta).Debug(ctx, "discarded result of superseded load",
			observe.F("handle", fl.id))
	}

	if err != nil {
		fl.err = err
	} else {
		fl.value = value
	}
	close(fl.done)
}

// Peek returns the entry for key without loading.
func (c *Client) Peek(key cache.Key) (cache.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(key)
}

// Invalidate evicts key. A load still running for it can no longer write;
// the next read starts a new one.
func (c *Client) Invalidate(key cache.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flights, key.String())
	return c.store.Evict(key)
}

// InvalidatePrefix evicts every key under prefix and returns the count.
func (c *Client) InvalidatePrefix(prefix cache.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, fl := range c.flights {
		if fl.key.HasPrefix(prefix) {
			delete(c.flights, k)
		}
	}
	return c.store.EvictPrefix(prefix)
}

// Reset clears a failed key so the next read loads it again. Entries that
// are not in the error state are left alone. Reports whether an entry was
// cleared.
func (c *Client) Reset(key cache.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.store.Get(key)
	if !ok || entry.Status != cache.StatusError {
		return false
	}
	return c.store.Evict(key)
}

// SetData stores value as a fresh success for key, e.g. after a mutation
// whose response carries the new state. A load running for key is
// abandoned.
func (c *Client) SetData(key cache.Key, value any, opts ...ReadOption) error {
	if key.IsZero() {
		return cache.ErrEmptyKey
	}
	ro := applyReadOptions(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	delete(c.flights, key.String())
	c.store.Set(key, cache.Entry{
		Status:     cache.StatusSuccess,
		Value:      value,
		FetchedAt:  now,
		StaleAfter: c.policy.EffectiveStaleAfter(ro.staleAfter),
		UpdatedAt:  now,
	})
	return nil
}

// Stats summarizes the store.
func (c *Client) Stats() cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cache.Collect(c.store)
}

// Guard returns the executor loads run through.
func (c *Client) Guard() *resilience.Executor {
	return c.guard
}

// Logger returns the client's logger.
func (c *Client) Logger() observe.Logger {
	return c.mw.Logger()
}

// Close cancels running loads. Loads started afterwards fail with ErrClosed.
func (c *Client) Close() {
	c.cancel()
}
