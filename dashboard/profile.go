package dashboard

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonwraymond/dashquery/api"
	"github.com/jonwraymond/dashquery/auth"
	"github.com/jonwraymond/dashquery/query"
)

// ProfileErrorTitle heads the profile panel's failure state.
const ProfileErrorTitle = "Failed to Load Profile"

// UserAPI is the part of the API client the profile panel needs.
type UserAPI interface {
	CurrentUser(ctx context.Context) (api.User, error)
}

// ProfileView is the rendered profile panel.
type ProfileView struct {
	State       State     `json:"state"`
	User        *api.User `json:"user,omitempty"`
	Initials    string    `json:"initials,omitempty"`
	StatusLabel string    `json:"status_label,omitempty"`
	ErrorTitle  string    `json:"error_title,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// ProfilePanel renders the current user. The user is cached per identity
// scope with a zero staleness window, so every render after the first is
// served from cache while a refresh runs.
type ProfilePanel struct {
	api      UserAPI
	boundary *query.Boundary
}

// NewProfilePanel creates a panel reading through queries.
func NewProfilePanel(queries *query.Client, users UserAPI) *ProfilePanel {
	p := &ProfilePanel{api: users}
	p.boundary = query.NewBoundary(queries, p.render)
	return p
}

// Render waits for the current user of the identity in ctx.
func (p *ProfilePanel) Render(ctx context.Context) ProfileView {
	return profileView(p.boundary.Render(ctx))
}

// Retry evicts a failed current-user entry and renders again. A panel
// that has not rendered yet renders first so that a failure stored by an
// earlier panel is captured and cleared.
func (p *ProfilePanel) Retry(ctx context.Context) ProfileView {
	if _, failed := p.boundary.Fallback(); !failed {
		if out := p.boundary.Render(ctx); !out.Fallback {
			return profileView(out)
		}
	}
	return profileView(p.boundary.Reset(ctx))
}

func (p *ProfilePanel) render(ctx context.Context, r query.Reader) (any, error) {
	scope := auth.CacheScopeFromContext(ctx)
	key, err := CurrentUserKey(scope)
	if err != nil {
		return nil, err
	}
	return query.Fetch(ctx, r, key, p.api.CurrentUser,
		query.WithStaleAfter(0),
		query.WithKind("current-user"),
		query.WithTenant(auth.TenantIDFromContext(ctx)),
	)
}

func profileView(out query.Outcome) ProfileView {
	switch {
	case out.Fallback:
		return ProfileView{State: StateFailed, ErrorTitle: ProfileErrorTitle, Error: out.Err.Error()}
	case out.Err != nil:
		return ProfileView{State: StateLoading}
	}
	u, _ := out.Value.(api.User)
	return ProfileView{
		State:       StateReady,
		User:        &u,
		Initials:    Initials(u.DisplayName),
		StatusLabel: StatusLabel(u.Active),
	}
}

// Initials returns the upper-cased first letters of each word of name,
// or "?" for an empty name.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}
	var b strings.Builder
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// StatusLabel renders the active flag.
func StatusLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}
