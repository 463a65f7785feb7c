// Package health reports whether dashquery can serve reads.
//
// A Checker reports the state of one component as Healthy, Degraded or
// Unhealthy. An Aggregator runs its checkers concurrently under a shared
// deadline and folds the results into one status, which the HTTP handlers
// expose as liveness, readiness and a detailed JSON report:
//
//	agg := health.NewAggregator()
//	agg.Register("query", health.NewQueryChecker(queries))
//	agg.Register("upstream", health.NewUpstreamChecker(ping, client.Guard()))
//	health.RegisterHandlers(mux, agg)
package health
