package dashboard

import "github.com/jonwraymond/dashquery/cache"

// DocsListKey names the project documentation list.
var DocsListKey = cache.MustKey("docs", "projects")

// DocKey names one project's documentation.
func DocKey(slug string) (cache.Key, error) {
	return DocsListKey.Append(slug)
}

// CurrentUserKey names the current user for a cache scope, see
// auth.Identity.CacheScope.
func CurrentUserKey(scope string) (cache.Key, error) {
	return cache.NewKey("current-user", scope)
}

// State is the render state of a view.
type State string

const (
	StateLoading State = "loading"
	StateEmpty   State = "empty"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)
