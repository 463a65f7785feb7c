// Package apiserver serves the backend API the dashboard reads:
// project documentation, the current user and the build version.
//
// Documentation comes from a Source: a local directory of markdown files
// or an S3 prefix, optionally memoized by CachedSource. The current user
// is derived from the request's auth.Identity.
package apiserver
