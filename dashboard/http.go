package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/dashquery/observe"
	"github.com/jonwraymond/dashquery/query"
)

// API is the upstream client the views read from.
type API interface {
	DocsAPI
	UserAPI
}

type viewHandler struct {
	queries *query.Client
	api     API
	opts    []DocsOption
	logger  observe.Logger
}

// NewHandler serves the dashboard views as JSON:
//
//	GET  /views/docs?slug=       documentation browser
//	POST /views/docs/retry?slug= retry a failed list or document
//	POST /views/docs/prefetch    load every document into the cache
//	GET  /views/profile          profile panel
//	POST /views/profile/retry    retry a failed profile
//
// Views are built per request and share the cache held by queries, so a
// failure shown to one request stays until a retry clears it.
func NewHandler(queries *query.Client, upstream API, logger observe.Logger, opts ...DocsOption) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	h := &viewHandler{queries: queries, api: upstream, opts: opts, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /views/docs", h.docs)
	mux.HandleFunc("POST /views/docs/retry", h.retryDocs)
	mux.HandleFunc("POST /views/docs/prefetch", h.prefetch)
	mux.HandleFunc("GET /views/profile", h.profile)
	mux.HandleFunc("POST /views/profile/retry", h.retryProfile)
	return mux
}

func (h *viewHandler) browser(r *http.Request) *DocsBrowser {
	b := NewDocsBrowser(h.queries, h.api, h.opts...)
	b.selected = r.URL.Query().Get("slug")
	return b
}

func (h *viewHandler) docs(w http.ResponseWriter, r *http.Request) {
	writeView(w, h.browser(r).Render(r.Context()))
}

func (h *viewHandler) retryDocs(w http.ResponseWriter, r *http.Request) {
	writeView(w, h.browser(r).Retry(r.Context()))
}

func (h *viewHandler) prefetch(w http.ResponseWriter, r *http.Request) {
	if err := h.browser(r).Prefetch(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "prefetch failed", observe.F("error", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *viewHandler) profile(w http.ResponseWriter, r *http.Request) {
	writeView(w, NewProfilePanel(h.queries, h.api).Render(r.Context()))
}

func (h *viewHandler) retryProfile(w http.ResponseWriter, r *http.Request) {
	writeView(w, NewProfilePanel(h.queries, h.api).Retry(r.Context()))
}

func writeView(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(v)
}
