package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a CheckAll run.
const DefaultCheckTimeout = 10 * time.Second

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds one Check or CheckAll. Default: DefaultCheckTimeout.
	Timeout time.Duration
}

type registration struct {
	name    string
	checker Checker
}

// Aggregator runs named checkers and folds their results.
type Aggregator struct {
	timeout time.Duration

	mu   sync.RWMutex
	regs []registration
}

// NewAggregator creates an aggregator. The config is optional.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	a := &Aggregator{timeout: DefaultCheckTimeout}
	if len(config) > 0 && config[0].Timeout > 0 {
		a.timeout = config[0].Timeout
	}
	return a
}

// Register adds checker under name. A second registration under the same
// name replaces the checker and keeps its position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := a.indexLocked(name); i >= 0 {
		a.regs[i].checker = checker
		return
	}
	a.regs = append(a.regs, registration{name: name, checker: checker})
}

func (a *Aggregator) indexLocked(name string) int {
	return slices.IndexFunc(a.regs, func(r registration) bool { return r.name == name })
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, len(a.regs))
	for i, r := range a.regs {
		names[i] = r.name
	}
	return names
}

// Check runs the checker registered as name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	i := a.indexLocked(name)
	var checker Checker
	if i >= 0 {
		checker = a.regs[i].checker
	}
	a.mu.RUnlock()
	if checker == nil {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return runCheck(ctx, checker), nil
}

// CheckAll runs every checker concurrently and returns results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	regs := slices.Clone(a.regs)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]Result, len(regs))
	var g errgroup.Group
	for i, r := range regs {
		g.Go(func() error {
			results[i] = runCheck(ctx, r.checker)
			return nil
		})
	}
	_ = g.Wait()

	byName := make(map[string]Result, len(regs))
	for i, r := range regs {
		byName[r.name] = results[i]
	}
	return byName
}

// OverallStatus returns the worst status in results. No results is
// healthy.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		overall = max(overall, r.Status)
	}
	return overall
}

// runCheck gives up on a checker that ignores ctx once ctx ends. The
// checker's goroutine finishes on its own and its result is dropped.
func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		r := checker.Check(ctx)
		r.Duration = time.Since(start)
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		done <- r
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}
