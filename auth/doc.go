// Package auth resolves who a dashboard request is for.
//
// Requests carry either a bearer JWT or the access token forwarded by the
// hosting proxy in X-Forwarded-Access-Token. The Middleware authenticates
// them, stores the Identity in the request context and keeps the raw
// headers so that outbound API calls can forward the caller's token.
//
// The identity's CacheScope partitions per-user cache keys such as
// ["current-user", scope], so two tenants never share an entry.
package auth
