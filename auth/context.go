package auth

import (
	"context"
	"net/http"
	"strings"
)

// ForwardedTokenHeader carries the end user's access token when the
// dashboard runs behind the hosting proxy.
const ForwardedTokenHeader = "X-Forwarded-Access-Token"

type contextKey int

const (
	identityKey contextKey = iota
	headersKey
)

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// PrincipalFromContext returns the principal, or "" without an identity.
func PrincipalFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Principal
	}
	return ""
}

// TenantIDFromContext returns the tenant ID, or "" when unset.
func TenantIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.TenantID
	}
	return ""
}

// CacheScopeFromContext returns the cache partition for the request.
func CacheScopeFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).CacheScope()
}

// WithHeaders returns a new context carrying the request headers.
func WithHeaders(ctx context.Context, headers http.Header) context.Context {
	return context.WithValue(ctx, headersKey, headers)
}

// HeadersFromContext retrieves HTTP headers from the context.
func HeadersFromContext(ctx context.Context) http.Header {
	h, _ := ctx.Value(headersKey).(http.Header)
	return h
}

// GetHeader returns the first value of a request header, canonicalizing key.
func GetHeader(ctx context.Context, key string) string {
	return HeadersFromContext(ctx).Get(key)
}

// TokenFromContext returns the caller's credential to forward upstream:
// the authenticated identity's token, else the forwarded access token, else
// a bearer Authorization header. Returns "" when the request carried none.
func TokenFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil && id.Token != "" {
		return id.Token
	}
	if tok := GetHeader(ctx, ForwardedTokenHeader); tok != "" {
		return tok
	}
	if h := GetHeader(ctx, "Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
