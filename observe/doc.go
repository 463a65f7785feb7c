// Package observe provides observability primitives for query loads.
//
// It is a pure instrumentation library: no loading, no transport, no I/O
// beyond exporter setup. The query client wraps every loader invocation with
// a Middleware and reports read outcomes (hit, stale, miss, dedup, error)
// through it.
package observe
