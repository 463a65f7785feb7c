// Package api is the typed HTTP client for the dashboard backend.
//
// It covers the endpoints the dashboard reads through the query cache:
//
//	GET /api/docs/projects          -> DocList
//	GET /api/docs/projects/{slug}   -> Doc
//	GET /api/current-user           -> User
//	GET /api/version                -> Version
//
// Failures are classified as *StatusError (non-2xx), ErrTransport (the
// request never produced a response) or ErrDecode (malformed body). Calls
// run through a resilience.Executor with a circuit breaker and a rate
// limiter; 4xx responses and caller cancellation do not trip the breaker.
package api
