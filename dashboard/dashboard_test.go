package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/dashquery/api"
	"github.com/jonwraymond/dashquery/auth"
	"github.com/jonwraymond/dashquery/cache"
	"github.com/jonwraymond/dashquery/query"
)

// fakeAPI serves documentation and users from memory. Errors queued in
// listErrs, docErrs and userErrs are returned once each, in order.
type fakeAPI struct {
	mu       sync.Mutex
	slugs    []string
	gates    map[string]chan struct{}
	listErrs []error
	docErrs  map[string][]error
	userErrs []error
	user     api.User
	calls    map[string]int
}

func newFakeAPI(slugs ...string) *fakeAPI {
	return &fakeAPI{
		slugs:   slugs,
		gates:   make(map[string]chan struct{}),
		docErrs: make(map[string][]error),
		calls:   make(map[string]int),
		user:    api.User{ID: "42", UserName: "ada@example.com", DisplayName: "Ada Lovelace", Active: true},
	}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) ListProjectDocs(context.Context) (api.DocList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		return api.DocList{}, err
	}
	return api.DocList{Slugs: append([]string{}, f.slugs...)}, nil
}

func (f *fakeAPI) GetProjectDoc(ctx context.Context, slug string) (api.Doc, error) {
	f.mu.Lock()
	f.calls["doc:"+slug]++
	gate := f.gates[slug]
	var err error
	if errs := f.docErrs[slug]; len(errs) > 0 {
		err = errs[0]
		f.docErrs[slug] = errs[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return api.Doc{}, ctx.Err()
		}
	}
	if err != nil {
		return api.Doc{}, err
	}
	return api.Doc{Slug: slug, Title: ProjectLabel(slug), Content: "# " + ProjectLabel(slug) + "\n"}, nil
}

func (f *fakeAPI) CurrentUser(context.Context) (api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["user"]++
	if len(f.userErrs) > 0 {
		err := f.userErrs[0]
		f.userErrs = f.userErrs[1:]
		return api.User{}, err
	}
	return f.user, nil
}

func newQueries(t *testing.T) *query.Client {
	t.Helper()
	c := query.NewClient(query.WithPolicy(cache.DocsPolicy()))
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDocsBrowser_DefaultSelection(t *testing.T) {
	fake := newFakeAPI("vi-home-one", "bsh-home-connect", "unlabelled")
	b := NewDocsBrowser(newQueries(t), fake)

	view := b.Render(context.Background())
	if view.State != StateReady {
		t.Fatalf("State = %s, want ready (%s)", view.State, view.Error)
	}
	if view.Selected != "vi-home-one" || b.Selected() != "vi-home-one" {
		t.Errorf("Selected = %q, want first slug", view.Selected)
	}
	wantLabels := []string{"ViDistrictOne", "BSH Remote Assist", "unlabelled"}
	for i, o := range view.Options {
		if o.Label != wantLabels[i] {
			t.Errorf("Options[%d].Label = %q, want %q", i, o.Label, wantLabels[i])
		}
	}
	if view.Content.State != StateReady || view.Content.Doc.Slug != "vi-home-one" {
		t.Errorf("Content = %+v", view.Content)
	}

	b.Render(context.Background())
	if fake.count("list") != 1 || fake.count("doc:vi-home-one") != 1 {
		t.Errorf("calls = %v, want one list and one doc load", fake.calls)
	}
}

func TestDocsBrowser_ContentRendersChosenSlug(t *testing.T) {
	fake := newFakeAPI("vi-home-one", "bsh-home-connect")
	b := NewDocsBrowser(newQueries(t), fake)
	if view := b.Render(context.Background()); view.Selected != "vi-home-one" {
		t.Fatalf("Selected = %q", view.Selected)
	}

	// A render that settled on another slug than the browser's current
	// selection gets that slug's document.
	cv := contentView(b.content.Render(withSelection(context.Background(), "bsh-home-connect")))
	if cv.State != StateReady || cv.Doc.Slug != "bsh-home-connect" {
		t.Errorf("Content = %+v, want bsh-home-connect", cv)
	}
}

func TestDocsBrowser_EmptyListIsNotAnError(t *testing.T) {
	fake := newFakeAPI()
	queries := newQueries(t)
	b := NewDocsBrowser(queries, fake)

	view := b.Render(context.Background())
	if view.State != StateEmpty || view.Message != EmptyDocsMessage {
		t.Fatalf("view = %+v, want empty state", view)
	}
	entry, _ := queries.Peek(DocsListKey)
	if entry.Status != cache.StatusSuccess {
		t.Errorf("list entry = %s, want success", entry.Status)
	}
}

func TestDocsBrowser_ListFailureAndRetry(t *testing.T) {
	fake := newFakeAPI("a")
	fake.listErrs = []error{errors.New("HTTP 500")}
	b := NewDocsBrowser(newQueries(t), fake)
	ctx := context.Background()

	if view := b.Render(ctx); view.State != StateFailed || view.Error == "" {
		t.Fatalf("view = %+v, want failed", view)
	}
	if view := b.Render(ctx); view.State != StateFailed {
		t.Fatalf("second render = %s, want failed until retry", view.State)
	}
	if fake.count("list") != 1 {
		t.Fatalf("list calls before retry = %d, want 1", fake.count("list"))
	}

	view := b.Retry(ctx)
	if view.State != StateReady || view.Content.Doc == nil {
		t.Fatalf("retry view = %+v, want ready", view)
	}
	if fake.count("list") != 2 {
		t.Errorf("list calls after retry = %d, want 2", fake.count("list"))
	}
}

func TestDocsBrowser_DocFailureIsKeyLocal(t *testing.T) {
	fake := newFakeAPI("a", "b")
	fake.docErrs["a"] = []error{errors.New("HTTP 404")}
	queries := newQueries(t)
	b := NewDocsBrowser(queries, fake)
	ctx := context.Background()

	view := b.Render(ctx)
	if view.State != StateReady || view.Content.State != StateFailed {
		t.Fatalf("view = %+v, want list ready and content failed", view)
	}
	entry, _ := queries.Peek(DocsListKey)
	if entry.Status != cache.StatusSuccess {
		t.Errorf("list entry = %s, want success", entry.Status)
	}

	view = b.Select(ctx, "b")
	if view.Content.State != StateReady || view.Content.Doc.Slug != "b" {
		t.Fatalf("after select content = %+v", view.Content)
	}

	view = b.Select(ctx, "a")
	if view.Content.State != StateReady || view.Content.Doc.Slug != "a" {
		t.Fatalf("reselect content = %+v", view.Content)
	}
	if fake.count("doc:a") != 2 {
		t.Errorf("doc:a calls = %d, want 2", fake.count("doc:a"))
	}
}

func TestDocsBrowser_ContentRetry(t *testing.T) {
	fake := newFakeAPI("a")
	fake.docErrs["a"] = []error{errors.New("HTTP 502")}
	b := NewDocsBrowser(newQueries(t), fake)
	ctx := context.Background()

	if view := b.Render(ctx); view.Content.State != StateFailed {
		t.Fatalf("content = %+v, want failed", view.Content)
	}
	view := b.Retry(ctx)
	if view.Content.State != StateReady {
		t.Fatalf("content after retry = %+v", view.Content)
	}
	if fake.count("list") != 1 {
		t.Errorf("list calls = %d, retry must not reload the list", fake.count("list"))
	}
}

func TestDocsBrowser_SelectSupersedesPendingRender(t *testing.T) {
	fake := newFakeAPI("a", "b")
	gateA := make(chan struct{})
	fake.gates["a"] = gateA
	queries := newQueries(t)
	b := NewDocsBrowser(queries, fake)
	keyA, _ := DocKey("a")
	keyB, _ := DocKey("b")

	done := make(chan DocsView, 1)
	go func() { done <- b.Render(context.Background()) }()
	waitFor(t, func() bool { return b.selector.Current().Equal(keyA) })

	view := b.Select(context.Background(), "b")
	if view.Content.State != StateReady || view.Content.Doc.Slug != "b" {
		t.Fatalf("selected content = %+v, want b", view.Content)
	}

	select {
	case old := <-done:
		if old.Content.State != StateLoading || old.Content.Doc != nil {
			t.Errorf("superseded render content = %+v, want loading without a document", old.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded render was not released")
	}

	close(gateA)
	waitFor(t, func() bool {
		e, _ := queries.Peek(keyA)
		return e.Status == cache.StatusSuccess
	})
	eb, _ := queries.Peek(keyB)
	if doc, _ := eb.Value.(api.Doc); doc.Slug != "b" {
		t.Errorf("entry b = %+v, late result for a leaked into b", eb.Value)
	}
}

func TestDocsBrowser_Prefetch(t *testing.T) {
	slugs := make([]string, 10)
	for i := range slugs {
		slugs[i] = fmt.Sprintf("p%02d", i)
	}
	fake := newFakeAPI(slugs...)
	b := NewDocsBrowser(newQueries(t), fake)
	ctx := context.Background()

	if err := b.Prefetch(ctx); err != nil {
		t.Fatalf("Prefetch() error = %v", err)
	}
	for _, s := range slugs {
		b.Select(ctx, s)
		if n := fake.count("doc:" + s); n != 1 {
			t.Errorf("doc:%s calls = %d, want 1", s, n)
		}
	}
}

func TestDocsBrowser_PrefetchReportsFailure(t *testing.T) {
	fake := newFakeAPI("a", "b")
	boom := errors.New("HTTP 500")
	fake.docErrs["b"] = []error{boom}
	b := NewDocsBrowser(newQueries(t), fake)

	if err := b.Prefetch(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Prefetch() error = %v, want %v", err, boom)
	}
}

func TestDocsBrowser_CancelledRenderIsLoading(t *testing.T) {
	fake := newFakeAPI("a")
	fake.gates["a"] = make(chan struct{})
	b := NewDocsBrowser(newQueries(t), fake)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	view := b.Render(ctx)
	if view.State != StateReady || view.Content.State != StateLoading {
		t.Errorf("view = %+v, want ready list with loading content", view)
	}
	if _, failed := b.content.Fallback(); failed {
		t.Error("cancellation entered the failure state")
	}
}

func TestProfilePanel(t *testing.T) {
	fake := newFakeAPI()
	p := NewProfilePanel(newQueries(t), fake)
	ctx := auth.WithIdentity(context.Background(), &auth.Identity{Principal: "42"})

	view := p.Render(ctx)
	if view.State != StateReady {
		t.Fatalf("State = %s (%s)", view.State, view.Error)
	}
	if view.Initials != "AL" || view.StatusLabel != "Active" || view.User.UserName != "ada@example.com" {
		t.Errorf("view = %+v", view)
	}

	p.Render(ctx)
	waitFor(t, func() bool { return fake.count("user") == 2 })
}

func TestProfilePanel_FailureAndRetry(t *testing.T) {
	fake := newFakeAPI()
	fake.userErrs = []error{errors.New("HTTP 503")}
	queries := newQueries(t)
	ctx := context.Background()

	view := NewProfilePanel(queries, fake).Render(ctx)
	if view.State != StateFailed || view.ErrorTitle != ProfileErrorTitle {
		t.Fatalf("view = %+v, want failed", view)
	}

	again := NewProfilePanel(queries, fake)
	if v := again.Render(ctx); v.State != StateFailed {
		t.Fatalf("new panel = %s, want the stored failure", v.State)
	}
	if fake.count("user") != 1 {
		t.Fatalf("user calls = %d, failure must be served from cache", fake.count("user"))
	}

	if v := NewProfilePanel(queries, fake).Retry(ctx); v.State != StateReady {
		t.Fatalf("retry = %+v, want ready", v)
	}
	if fake.count("user") != 2 {
		t.Errorf("user calls = %d, want 2", fake.count("user"))
	}
}

func TestProfilePanel_ScopedPerIdentity(t *testing.T) {
	fake := newFakeAPI()
	queries := newQueries(t)
	p := NewProfilePanel(queries, fake)

	alice := auth.WithIdentity(context.Background(), &auth.Identity{Principal: "alice", TenantID: "acme"})
	bob := auth.WithIdentity(context.Background(), &auth.Identity{Principal: "bob", TenantID: "acme"})
	p.Render(alice)
	p.Render(bob)

	for _, scope := range []string{"acme/alice", "acme/bob"} {
		key, _ := CurrentUserKey(scope)
		if _, ok := queries.Peek(key); !ok {
			t.Errorf("no entry for %s", key)
		}
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Ada Lovelace", "AL"},
		{"local developer", "LD"},
		{"  spaced   out ", "SO"},
		{"Émile Zola", "ÉZ"},
		{"", "?"},
	}
	for _, tt := range tests {
		if got := Initials(tt.name); got != tt.want {
			t.Errorf("Initials(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
	if StatusLabel(false) != "Inactive" {
		t.Error("StatusLabel(false) != Inactive")
	}
}
