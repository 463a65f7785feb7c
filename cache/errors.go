package cache

import "errors"

// MaxKeyLength is the maximum allowed length of a key's canonical encoding.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilStore     = errors.New("cache: store is nil")
	ErrEmptyKey     = errors.New("cache: key has no segments")
	ErrInvalidKey   = errors.New("cache: key is invalid")
	ErrKeyTooLong   = errors.New("cache: key exceeds max length")
	ErrInvalidEntry = errors.New("cache: entry violates state invariants")
)
