package invalidate

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/dashquery/cache"
)

// Publisher evicts keys, locally and wherever else the implementation
// reaches. RedisBus and Local implement it.
type Publisher interface {
	Invalidate(ctx context.Context, key cache.Key) error
	InvalidatePrefix(ctx context.Context, prefix cache.Key) error
}

// Local applies invalidations to this process only. It is used when no
// Redis is configured.
type Local struct {
	Target Target
}

// Invalidate evicts key.
func (l Local) Invalidate(_ context.Context, key cache.Key) error {
	l.Target.Invalidate(key)
	return nil
}

// InvalidatePrefix evicts every key under prefix.
func (l Local) InvalidatePrefix(_ context.Context, prefix cache.Key) error {
	l.Target.InvalidatePrefix(prefix)
	return nil
}

type request struct {
	Keys   []cache.Key `json:"keys"`
	Prefix bool        `json:"prefix"`
}

// Handler accepts POSTed invalidations of the form
//
//	{"keys": [["docs","projects"]], "prefix": true}
//
// and answers 204 once every key was published.
func Handler(p Publisher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Keys) == 0 {
			http.Error(w, "keys required", http.StatusBadRequest)
			return
		}
		for _, key := range req.Keys {
			if key.IsZero() {
				http.Error(w, "empty key", http.StatusBadRequest)
				return
			}
		}

		for _, key := range req.Keys {
			var err error
			if req.Prefix {
				err = p.InvalidatePrefix(r.Context(), key)
			} else {
				err = p.Invalidate(r.Context(), key)
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

var _ Publisher = (*RedisBus)(nil)
