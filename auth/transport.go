package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/dashquery/observe"
)

// WithAuthHeaders is HTTP middleware that extracts request headers
// into the context, so upstream calls can forward the caller's token.
//
// Usage:
//
//	mux.Handle("/api", auth.WithAuthHeaders(apiHandler))
func WithAuthHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithHeaders(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// Authenticator validates each request. Required.
	Authenticator Authenticator

	// AllowAnonymous attaches AnonymousIdentity instead of rejecting
	// requests that carry no valid credentials.
	AllowAnonymous bool

	// Logger receives authentication failures. Defaults to a no-op logger.
	Logger observe.Logger
}

// Middleware authenticates every request and attaches the resulting
// identity and the request headers to its context. Requests without a
// valid identity are rejected with 401 unless AllowAnonymous is set.
// Internal authenticator errors yield 503.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithHeaders(r.Context(), r.Header)
			req := &AuthRequest{Headers: r.Header, Path: r.URL.Path}

			var result *AuthResult
			if cfg.Authenticator.Supports(ctx, req) {
				var err error
				result, err = cfg.Authenticator.Authenticate(ctx, req)
				if err != nil {
					logger.Error(ctx, "authentication unavailable",
						observe.F("path", req.Path),
						observe.F("error", err),
					)
					writeAuthError(w, http.StatusServiceUnavailable, "Authentication unavailable")
					return
				}
			} else {
				result = AuthFailure(ErrMissingCredentials, cfg.Authenticator.Name())
			}

			identity := result.Identity
			if !result.Authenticated || identity == nil {
				if !cfg.AllowAnonymous {
					logger.Warn(ctx, "authentication failed",
						observe.F("path", req.Path),
						observe.F("method", result.Method),
						observe.F("error", result.Error),
					)
					writeAuthError(w, http.StatusUnauthorized, failureDetail(result.Error))
					return
				}
				identity = AnonymousIdentity()
			}

			ctx = WithIdentity(ctx, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func failureDetail(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, ErrMissingCredentials):
		return "Not authenticated"
	default:
		return "Invalid credentials"
	}
}

func writeAuthError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="dashquery"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
