package auth

import (
	"context"
	"net/http"
)

// Authenticator turns request credentials into an Identity.
//
// Authenticate reports a rejected credential as an AuthResult with
// Authenticated false and a nil error. A non-nil error means the check
// itself could not run, for example because the key set was unreachable.
// Implementations are safe for concurrent use.
type Authenticator interface {
	Name() string
	// Supports reports whether the request carries a credential this
	// authenticator understands.
	Supports(ctx context.Context, req *AuthRequest) bool
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest is the part of an HTTP request authenticators look at.
type AuthRequest struct {
	Headers http.Header
	Path    string
}

// GetHeader returns the first value of header key.
func (r *AuthRequest) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// AuthResult is the outcome of one authentication attempt. Identity is
// set when Authenticated is true and Error otherwise. Method names the
// authenticator that produced the result.
type AuthResult struct {
	Authenticated bool
	Identity      *Identity
	Error         error
	Method        string
}

// AuthSuccess accepts identity.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{Authenticated: true, Identity: identity, Method: string(identity.Method)}
}

// AuthFailure rejects the request with err.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{Error: err, Method: method}
}

type (
	supportsFunc     func(ctx context.Context, req *AuthRequest) bool
	authenticateFunc func(ctx context.Context, req *AuthRequest) (*AuthResult, error)
)

// AuthenticatorFunc is an Authenticator built from two functions.
type AuthenticatorFunc struct {
	name         string
	supports     supportsFunc
	authenticate authenticateFunc
}

// NewAuthenticatorFunc names supports and authenticate as an Authenticator.
func NewAuthenticatorFunc(name string, supports supportsFunc, authenticate authenticateFunc) *AuthenticatorFunc {
	return &AuthenticatorFunc{name: name, supports: supports, authenticate: authenticate}
}

func (f *AuthenticatorFunc) Name() string { return f.name }

func (f *AuthenticatorFunc) Supports(ctx context.Context, req *AuthRequest) bool {
	return f.supports(ctx, req)
}

func (f *AuthenticatorFunc) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	return f.authenticate(ctx, req)
}

// LocalDevAuthenticator accepts every request as LocalDevIdentity. It goes
// last in a chain for local development.
func LocalDevAuthenticator() *AuthenticatorFunc {
	return NewAuthenticatorFunc("local",
		func(context.Context, *AuthRequest) bool { return true },
		func(context.Context, *AuthRequest) (*AuthResult, error) {
			return AuthSuccess(LocalDevIdentity()), nil
		},
	)
}
