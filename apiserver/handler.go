package apiserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonwraymond/dashquery/api"
	"github.com/jonwraymond/dashquery/auth"
	"github.com/jonwraymond/dashquery/observe"
)

// Config configures the API handler.
type Config struct {
	// Docs provides project documentation. Required.
	Docs Source

	// Version is reported by /api/version.
	Version string

	// CurrentUserPath is where the current user is served.
	// Default: api.DefaultCurrentUserPath
	CurrentUserPath string

	// LocalDev answers /api/current-user with the local developer when
	// the request carries no identity.
	LocalDev bool

	Logger observe.Logger
}

type handler struct {
	cfg    Config
	logger observe.Logger
}

// NewHandler returns the API routes.
func NewHandler(cfg Config) http.Handler {
	if cfg.CurrentUserPath == "" {
		cfg.CurrentUserPath = api.DefaultCurrentUserPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	h := &handler{cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/docs/projects", h.listDocs)
	mux.HandleFunc("GET /api/docs/projects/{slug}", h.getDoc)
	mux.HandleFunc("GET "+cfg.CurrentUserPath, h.currentUser)
	mux.HandleFunc("GET /api/version", h.version)
	return mux
}

func (h *handler) listDocs(w http.ResponseWriter, r *http.Request) {
	slugs, err := h.cfg.Docs.List(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "list docs failed", observe.F("error", err))
		writeDetail(w, http.StatusInternalServerError, "Failed to list documentation")
		return
	}
	writeJSON(w, http.StatusOK, api.DocList{Slugs: slugs})
}

func (h *handler) getDoc(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	content, err := h.cfg.Docs.Get(r.Context(), slug)
	switch {
	case errors.Is(err, ErrDocNotFound):
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Documentation not found for '%s'", slug))
		return
	case err != nil:
		h.logger.Error(r.Context(), "read doc failed", observe.F("slug", slug), observe.F("error", err))
		writeDetail(w, http.StatusInternalServerError, "Failed to read documentation")
		return
	}
	writeJSON(w, http.StatusOK, api.Doc{Slug: slug, Title: DocTitle(slug, content), Content: content})
}

func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id.IsAnonymous() {
		if !h.cfg.LocalDev {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		id = auth.LocalDevIdentity()
	}
	writeJSON(w, http.StatusOK, UserFromIdentity(id))
}

func (h *handler) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.Version{Version: h.cfg.Version})
}

// DocTitle returns the text of the first "# " heading, or slug.
func DocTitle(slug, content string) string {
	for line := range strings.Lines(content) {
		if rest, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return slug
}

// UserFromIdentity renders an identity as the current-user record.
func UserFromIdentity(id *auth.Identity) api.User {
	u := api.User{
		ID:          id.Principal,
		UserName:    id.UserName,
		DisplayName: id.DisplayName,
		Active:      true,
	}
	if u.UserName == "" {
		u.UserName = id.PrimaryEmail()
	}
	if u.DisplayName == "" {
		u.DisplayName = u.UserName
	}
	for i, e := range id.Emails {
		u.Emails = append(u.Emails, api.Email{Value: e, Primary: i == 0})
	}
	if id.GivenName != "" || id.FamilyName != "" {
		u.Name = &api.Name{GivenName: id.GivenName, FamilyName: id.FamilyName}
	}
	return u
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
