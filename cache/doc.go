// Package cache provides the process-wide store behind dashboard reads.
//
// It defines structural query keys, the per-key entry state machine
// (empty, pending, success, error), a mutex-guarded in-memory Store and the
// staleness Policy that decides when a successful entry becomes eligible for
// background refresh. The package performs no I/O; loading is the concern of
// package query.
package cache
