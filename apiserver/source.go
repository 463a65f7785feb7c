package apiserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/dashquery/cache"
	"github.com/jonwraymond/dashquery/query"
)

// ErrDocNotFound is returned by a Source for an unknown slug.
var ErrDocNotFound = errors.New("apiserver: documentation not found")

// Source lists and reads project documentation. Slugs are file stems:
// "vi-home-one" is stored as "vi-home-one.md".
type Source interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, slug string) (string, error)
}

const docExt = ".md"

// validSlug rejects slugs that could address anything but a top-level
// document.
func validSlug(slug string) bool {
	return slug != "" && filepath.IsLocal(slug) && !strings.ContainsAny(slug, `/\`)
}

// DirSource serves documents from a local directory. A missing directory
// lists as empty.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// List returns the sorted stems of the directory's .md files.
func (s *DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apiserver: list %s: %w", s.dir, err)
	}
	slugs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != docExt {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(e.Name(), docExt))
	}
	slices.Sort(slugs)
	return slugs, nil
}

// Get reads <dir>/<slug>.md.
func (s *DirSource) Get(_ context.Context, slug string) (string, error) {
	if !validSlug(slug) {
		return "", ErrDocNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, slug+docExt))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrDocNotFound
	}
	if err != nil {
		return "", fmt.Errorf("apiserver: read %s: %w", slug, err)
	}
	return string(data), nil
}

// CachedSource memoizes another Source in a query client, so repeated API
// requests do not re-read S3 or disk until the entries go stale.
type CachedSource struct {
	src        Source
	queries    *query.Client
	staleAfter time.Duration
}

var sourceKey = cache.MustKey("apiserver", "docs")

// NewCachedSource wraps src.
func NewCachedSource(src Source, queries *query.Client, staleAfter time.Duration) *CachedSource {
	return &CachedSource{src: src, queries: queries, staleAfter: staleAfter}
}

// List returns the cached slug list.
func (s *CachedSource) List(ctx context.Context) ([]string, error) {
	slugs, err := query.Fetch(ctx, s.queries, sourceKey, s.src.List,
		query.WithStaleAfter(s.staleAfter), query.WithKind("apiserver.docs.list"))
	if err != nil {
		s.queries.Reset(sourceKey)
		return nil, err
	}
	return slugs, nil
}

// Get returns the cached document. Misses are not cached.
func (s *CachedSource) Get(ctx context.Context, slug string) (string, error) {
	if !validSlug(slug) {
		return "", ErrDocNotFound
	}
	key, err := sourceKey.Append(slug)
	if err != nil {
		return "", ErrDocNotFound
	}
	content, err := query.Fetch(ctx, s.queries, key, func(ctx context.Context) (string, error) {
		return s.src.Get(ctx, slug)
	}, query.WithStaleAfter(s.staleAfter), query.WithKind("apiserver.docs.get"))
	if err != nil {
		s.queries.Reset(key)
		return "", err
	}
	return content, nil
}

// Invalidate drops every cached document.
func (s *CachedSource) Invalidate() int {
	return s.queries.InvalidatePrefix(sourceKey)
}

var (
	_ Source = (*DirSource)(nil)
	_ Source = (*CachedSource)(nil)
)
