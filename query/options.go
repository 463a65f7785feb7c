package query

import (
	"time"

	"github.com/jonwraymond/dashquery/cache"
	"github.com/jonwraymond/dashquery/observe"
	"github.com/jonwraymond/dashquery/resilience"
)

// Option configures a Client.
type Option func(*Client)

// WithStore sets the backing store. Default: a new cache.MemoryStore.
func WithStore(s cache.Store) Option {
	return func(c *Client) {
		if s != nil {
			c.store = s
		}
	}
}

// WithPolicy sets the default staleness policy. Default: cache.DefaultPolicy.
func WithPolicy(p cache.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLoadTimeout bounds each loader invocation.
// Default: resilience.DefaultLoadTimeout. Ignored when WithGuard is set.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.loadTimeout = d
	}
}

// WithMaxConcurrentLoads caps loads running at once; excess loads queue.
// Zero means unlimited. Ignored when WithGuard is set.
func WithMaxConcurrentLoads(n int) Option {
	return func(c *Client) {
		c.maxLoads = n
	}
}

// WithGuard replaces the executor every load runs through.
func WithGuard(e *resilience.Executor) Option {
	return func(c *Client) {
		c.guard = e
	}
}

// WithMiddleware instruments loads and reads.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *Client) {
		if mw != nil {
			c.mw = mw
		}
	}
}

// WithClock sets the time source used for staleness. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRetryOnRead makes a read of a failed key start a new load instead of
// serving the stored error.
func WithRetryOnRead() Option {
	return func(c *Client) {
		c.retryOnRead = true
	}
}

// ReadOption configures a single read.
type ReadOption func(*readOptions)

type readOptions struct {
	staleAfter *time.Duration
	kind       string
	tenant     string
}

// WithStaleAfter overrides the policy staleness window for this read.
// The window is recorded on the entry when the load resolves.
func WithStaleAfter(d time.Duration) ReadOption {
	return func(o *readOptions) {
		o.staleAfter = &d
	}
}

// WithKind labels the read for tracing and metrics, e.g. "docs.content".
func WithKind(kind string) ReadOption {
	return func(o *readOptions) {
		o.kind = kind
	}
}

// WithTenant labels the read with the tenant it serves.
func WithTenant(tenant string) ReadOption {
	return func(o *readOptions) {
		o.tenant = tenant
	}
}

func applyReadOptions(opts []ReadOption) readOptions {
	var o readOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
