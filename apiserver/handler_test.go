package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonwraymond/dashquery/api"
	"github.com/jonwraymond/dashquery/auth"
)

func serve(t *testing.T, h http.Handler, path string, id *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if id != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), id))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHandler_Docs(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"vi-home-one.md": "Intro line\n# ViDistrictOne \nbody\n",
		"untitled.md":    "no heading here\n",
	})
	h := NewHandler(Config{Docs: NewDirSource(dir), Version: "1.0.0"})

	rec := serve(t, h, "/api/docs/projects", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decode[api.DocList](t, rec)
	if len(list.Slugs) != 2 || list.Slugs[0] != "untitled" {
		t.Errorf("slugs = %v", list.Slugs)
	}

	doc := decode[api.Doc](t, serve(t, h, "/api/docs/projects/vi-home-one", nil))
	if doc.Slug != "vi-home-one" || doc.Title != "ViDistrictOne" {
		t.Errorf("doc = %+v", doc)
	}
	if doc := decode[api.Doc](t, serve(t, h, "/api/docs/projects/untitled", nil)); doc.Title != "untitled" {
		t.Errorf("untitled title = %q, want slug", doc.Title)
	}

	rec = serve(t, h, "/api/docs/projects/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["detail"] != "Documentation not found for 'missing'" {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestHandler_EmptyDocs(t *testing.T) {
	h := NewHandler(Config{Docs: NewDirSource(t.TempDir())})
	rec := serve(t, h, "/api/docs/projects", nil)
	if rec.Body.String() != "{\"slugs\":[]}\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandler_Version(t *testing.T) {
	h := NewHandler(Config{Docs: NewDirSource(t.TempDir()), Version: "2.3.4"})
	if v := decode[api.Version](t, serve(t, h, "/api/version", nil)); v.Version != "2.3.4" {
		t.Errorf("version = %q", v.Version)
	}
}

func TestHandler_CurrentUser(t *testing.T) {
	ada := &auth.Identity{
		Principal:   "42",
		UserName:    "ada@example.com",
		DisplayName: "Ada Lovelace",
		GivenName:   "Ada",
		FamilyName:  "Lovelace",
		Emails:      []string{"ada@example.com"},
		Method:      auth.AuthMethodJWT,
	}

	tests := []struct {
		name       string
		localDev   bool
		identity   *auth.Identity
		wantStatus int
		wantID     string
		wantName   string
	}{
		{name: "identity", identity: ada, wantStatus: http.StatusOK, wantID: "42", wantName: "Ada Lovelace"},
		{name: "local dev", localDev: true, wantStatus: http.StatusOK, wantID: "local-dev-user", wantName: "Local Developer"},
		{name: "anonymous local dev", localDev: true, identity: auth.AnonymousIdentity(), wantStatus: http.StatusOK, wantID: "local-dev-user", wantName: "Local Developer"},
		{name: "unauthenticated", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Config{Docs: NewDirSource(t.TempDir()), LocalDev: tt.localDev})
			rec := serve(t, h, "/api/current-user", tt.identity)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			u := decode[api.User](t, rec)
			if u.ID != tt.wantID || u.DisplayName != tt.wantName || !u.Active {
				t.Errorf("user = %+v", u)
			}
			if u.Name == nil || u.Name.GivenName == "" {
				t.Errorf("name = %+v", u.Name)
			}
		})
	}
}

func TestHandler_CurrentUserSnakeCase(t *testing.T) {
	h := NewHandler(Config{Docs: NewDirSource(t.TempDir()), LocalDev: true})
	body := decode[map[string]any](t, serve(t, h, "/api/current-user", nil))
	for _, k := range []string{"id", "user_name", "display_name", "active", "emails", "name"} {
		if _, ok := body[k]; !ok {
			t.Errorf("missing %q in %v", k, body)
		}
	}
	name, _ := body["name"].(map[string]any)
	if name["given_name"] != "Local" || name["family_name"] != "Developer" {
		t.Errorf("name = %v", name)
	}
}

func TestHandler_CustomCurrentUserPath(t *testing.T) {
	h := NewHandler(Config{Docs: NewDirSource(t.TempDir()), LocalDev: true, CurrentUserPath: "/api/me"})
	if rec := serve(t, h, "/api/me", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestDocTitle(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{content: "# Title\n", want: "Title"},
		{content: "## Sub\n# Main\n", want: "Main"},
		{content: "#NoSpace\n", want: "slug"},
		{content: "", want: "slug"},
		{content: "text\r\n# Windows\r\n", want: "Windows"},
	}
	for _, tt := range tests {
		if got := DocTitle("slug", tt.content); got != tt.want {
			t.Errorf("DocTitle(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}
