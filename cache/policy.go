package cache

import "time"

// Policy configures staleness for successful entries.
type Policy struct {
	// StaleAfter is the staleness window used when a read does not set one.
	// Zero marks values stale as soon as they resolve; NeverStale disables
	// staleness.
	StaleAfter time.Duration

	// MaxStaleAfter caps per-read windows, including NeverStale.
	// If zero, no maximum is enforced.
	MaxStaleAfter time.Duration
}

// DocsStaleAfter is the staleness window for documentation reads.
const DocsStaleAfter = 5 * time.Minute

// DefaultPolicy returns the policy for reads without special requirements:
// values are stale immediately and refreshed in the background on next read.
func DefaultPolicy() Policy {
	return NoStalePolicy()
}

// NoStalePolicy returns a policy with a zero staleness window.
func NoStalePolicy() Policy {
	return Policy{StaleAfter: 0}
}

// DocsPolicy returns the documentation policy.
// StaleAfter: 5 minutes, MaxStaleAfter: 1 hour
func DocsPolicy() Policy {
	return Policy{
		StaleAfter:    DocsStaleAfter,
		MaxStaleAfter: time.Hour,
	}
}

// EffectiveStaleAfter returns the window for a read. When override is nil
// the policy default applies; the result is clamped to MaxStaleAfter.
func (p Policy) EffectiveStaleAfter(override *time.Duration) time.Duration {
	d := p.StaleAfter
	if override != nil {
		d = *override
	}
	if d < 0 {
		d = NeverStale
	}

	if p.MaxStaleAfter > 0 && (d == NeverStale || d > p.MaxStaleAfter) {
		d = p.MaxStaleAfter
	}
	return d
}
