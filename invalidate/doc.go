// Package invalidate fans cache invalidations out to every dashquery
// process over Redis pub/sub.
//
// Each process owns an in-memory query cache. When one process learns that
// documentation changed, it publishes the affected key or key prefix; every
// subscriber evicts the matching entries so the next read loads fresh data.
package invalidate
