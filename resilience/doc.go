// Package resilience guards loader invocations and upstream HTTP calls.
//
// Loads never retry on their own: a failed load becomes a stored error and
// recovery is an explicit reset. What this package provides is containment:
//
//   - Timeout: bounds a single loader invocation (default 30s) so a hung
//     upstream resolves to an error instead of leaving waiters parked.
//
//   - Bulkhead: caps how many loads run at once across the process.
//
//   - Circuit Breaker: fails fast while the upstream API keeps failing.
//
//   - Rate Limiter: smooths bursts of upstream requests, e.g. a docs prefetch
//     fanning out over every project.
//
// # Usage
//
//	guard := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
//	        MaxConcurrent: 16,
//	        MaxWait:       resilience.WaitForever,
//	    })),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	doc, err := resilience.Do(ctx, guard, func(ctx context.Context) (api.Doc, error) {
//	    return client.GetProjectDoc(ctx, slug)
//	})
package resilience
