package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the sustained number of calls per second. Default: 100
	Rate float64

	// Burst is the bucket size. Default: 10
	Burst int

	// WaitOnLimit makes Execute wait for a token instead of failing with
	// ErrRateLimitExceeded.
	WaitOnLimit bool

	// MaxWait bounds how long Wait blocks. Default: 1 second
	MaxWait time.Duration

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// RateLimiter is a token bucket in front of the upstream API.
type RateLimiter struct {
	config RateLimiterConfig

	mu     sync.Mutex
	tokens float64
	filled time.Time
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &RateLimiter{
		config: config,
		tokens: float64(config.Burst),
		filled: config.Now(),
	}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.take()
	return ok
}

// Wait blocks until a token is taken. It fails with ErrRateLimitExceeded
// when no token frees up within MaxWait and with the context error when
// ctx ends first.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := rl.config.Now().Add(rl.config.MaxWait)

	for {
		wait, ok := rl.take()
		if ok {
			return nil
		}
		if rl.config.Now().Add(wait).After(deadline) {
			return ErrRateLimitExceeded
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Execute runs op once a token is available.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.Allow() {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// Tokens returns the tokens currently in the bucket.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Reset refills the bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = float64(rl.config.Burst)
	rl.filled = rl.config.Now()
}

// take removes one token, or reports how long until one is available.
func (rl *RateLimiter) take() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	return time.Duration((1 - rl.tokens) / rl.config.Rate * float64(time.Second)), false
}

func (rl *RateLimiter) refillLocked() {
	now := rl.config.Now()
	rl.tokens += now.Sub(rl.filled).Seconds() * rl.config.Rate
	rl.filled = now
	if burst := float64(rl.config.Burst); rl.tokens > burst {
		rl.tokens = burst
	}
}
