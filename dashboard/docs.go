package dashboard

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/dashquery/api"
	"github.com/jonwraymond/dashquery/cache"
	"github.com/jonwraymond/dashquery/query"
)

// EmptyDocsMessage is shown when no project has documentation.
const EmptyDocsMessage = "No project documentation available yet."

// DefaultPrefetchConcurrency bounds parallel document loads in Prefetch.
const DefaultPrefetchConcurrency = 4

// DocsAPI is the part of the API client the browser needs.
type DocsAPI interface {
	ListProjectDocs(ctx context.Context) (api.DocList, error)
	GetProjectDoc(ctx context.Context, slug string) (api.Doc, error)
}

// Option is one entry of the project picker.
type Option struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
}

// ContentView is the selected document pane.
type ContentView struct {
	State State    `json:"state"`
	Doc   *api.Doc `json:"doc,omitempty"`
	// Refreshing is set while a stale document is revalidated.
	Refreshing bool   `json:"refreshing,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DocsView is the rendered documentation browser.
type DocsView struct {
	State    State       `json:"state"`
	Options  []Option    `json:"options,omitempty"`
	Selected string      `json:"selected,omitempty"`
	Content  ContentView `json:"content"`
	Message  string      `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// DocsBrowser renders the project list and the selected project's
// markdown. The list and the content fail independently: a failed
// document leaves the list usable and vice versa.
type DocsBrowser struct {
	queries    *query.Client
	api        DocsAPI
	staleAfter time.Duration

	selector *query.Selector
	list     *query.Boundary
	content  *query.Boundary

	mu       sync.Mutex
	selected string
}

// DocsOption configures a DocsBrowser.
type DocsOption func(*DocsBrowser)

// WithDocsStaleAfter sets the staleness window of document content.
// Default: cache.DocsStaleAfter (5 minutes).
func WithDocsStaleAfter(d time.Duration) DocsOption {
	return func(b *DocsBrowser) {
		b.staleAfter = d
	}
}

// NewDocsBrowser creates a browser reading through queries.
func NewDocsBrowser(queries *query.Client, docs DocsAPI, opts ...DocsOption) *DocsBrowser {
	b := &DocsBrowser{
		queries:    queries,
		api:        docs,
		staleAfter: cache.DocsStaleAfter,
		selector:   query.NewSelector(queries),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.list = query.NewBoundary(queries, b.renderList)
	b.content = query.NewBoundary(queries, b.renderContent)
	return b
}

// Selected returns the selected slug, or "" before the first render.
func (b *DocsBrowser) Selected() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected
}

// Select switches the content pane to slug and renders. A render still
// waiting for the previous slug is released as superseded. A content
// failure for the previous slug is cleared.
func (b *DocsBrowser) Select(ctx context.Context, slug string) DocsView {
	b.mu.Lock()
	changed := b.selected != slug
	b.selected = slug
	b.mu.Unlock()

	if changed {
		b.selector.Clear()
		if _, failed := b.content.Fallback(); failed {
			b.content.Reset(ctx)
		}
	}
	return b.Render(ctx)
}

// Render waits for the list and the selected document. If ctx ends
// first the affected part reports StateLoading.
func (b *DocsBrowser) Render(ctx context.Context) DocsView {
	out := b.list.Render(ctx)
	view, ok := b.listView(out)
	if !ok || view.State != StateReady {
		return view
	}

	slug := b.ensureSelection(view.Options)
	view.Selected = slug
	view.Content = contentView(b.content.Render(withSelection(ctx, slug)))
	return view
}

type selectionKey struct{}

// withSelection carries the slug a render settled on into the content
// scope, so a concurrent Select cannot pair one slug with another's
// document.
func withSelection(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, selectionKey{}, slug)
}

func (b *DocsBrowser) selection(ctx context.Context) string {
	if slug, ok := ctx.Value(selectionKey{}).(string); ok {
		return slug
	}
	return b.Selected()
}

// Retry resets whichever part failed and renders again. It renders first
// so that a browser created for this call captures failures stored by an
// earlier one; rendering a stored failure does not load.
func (b *DocsBrowser) Retry(ctx context.Context) DocsView {
	b.Render(ctx)
	if _, failed := b.list.Fallback(); failed {
		b.list.Reset(ctx)
	}
	if _, failed := b.content.Fallback(); failed {
		b.content.Reset(ctx)
	}
	return b.Render(ctx)
}

// Prefetch warms the cache with every listed document, loading at most
// DefaultPrefetchConcurrency at a time. It returns the first failure.
func (b *DocsBrowser) Prefetch(ctx context.Context) error {
	list, err := b.readList(ctx, b.queries)
	if err != nil {
		return err
	}

	keys := make([]cache.Key, len(list.Slugs))
	for i, slug := range list.Slugs {
		if keys[i], err = DocKey(slug); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultPrefetchConcurrency)
	for i, slug := range list.Slugs {
		key := keys[i]
		g.Go(func() error {
			_, err := query.Await[api.Doc](ctx, b.queries.Read(ctx, key, b.docLoader(slug), b.docOptions()...))
			return err
		})
	}
	return g.Wait()
}

func (b *DocsBrowser) renderList(ctx context.Context, r query.Reader) (any, error) {
	return b.readList(ctx, r)
}

func (b *DocsBrowser) readList(ctx context.Context, r query.Reader) (api.DocList, error) {
	return query.Fetch(ctx, r, DocsListKey, b.api.ListProjectDocs,
		query.WithStaleAfter(b.staleAfter),
		query.WithKind("docs.list"),
	)
}

func (b *DocsBrowser) renderContent(ctx context.Context, r query.Reader) (any, error) {
	slug := b.selection(ctx)
	key, err := DocKey(slug)
	if err != nil {
		return nil, err
	}
	f := b.selector.Via(r).Read(ctx, key, b.docLoader(slug), b.docOptions()...)
	doc, err := query.Await[api.Doc](ctx, f)
	if err != nil {
		return nil, err
	}
	return ContentView{State: StateReady, Doc: &doc, Refreshing: f.Revalidation() != nil}, nil
}

func (b *DocsBrowser) docLoader(slug string) query.Loader {
	return query.LoaderOf(func(ctx context.Context) (api.Doc, error) {
		return b.api.GetProjectDoc(ctx, slug)
	})
}

func (b *DocsBrowser) docOptions() []query.ReadOption {
	return []query.ReadOption{query.WithStaleAfter(b.staleAfter), query.WithKind("docs.content")}
}

// ensureSelection keeps a listed selection and otherwise selects the
// first option.
func (b *DocsBrowser) ensureSelection(options []Option) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	listed := slices.ContainsFunc(options, func(o Option) bool { return o.Slug == b.selected })
	if !listed {
		b.selected = options[0].Slug
	}
	return b.selected
}

func (b *DocsBrowser) listView(out query.Outcome) (DocsView, bool) {
	switch {
	case out.Fallback:
		return DocsView{State: StateFailed, Error: out.Err.Error()}, false
	case out.Err != nil:
		return DocsView{State: StateLoading}, false
	}

	list, _ := out.Value.(api.DocList)
	if len(list.Slugs) == 0 {
		return DocsView{State: StateEmpty, Message: EmptyDocsMessage}, true
	}
	options := make([]Option, len(list.Slugs))
	for i, slug := range list.Slugs {
		options[i] = Option{Slug: slug, Label: ProjectLabel(slug)}
	}
	return DocsView{State: StateReady, Options: options}, true
}

func contentView(out query.Outcome) ContentView {
	switch {
	case out.Fallback:
		return ContentView{State: StateFailed, Error: out.Err.Error()}
	case out.Err != nil:
		return ContentView{State: StateLoading}
	}
	cv, _ := out.Value.(ContentView)
	return cv
}
