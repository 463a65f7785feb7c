package query

import (
	"context"
	"fmt"

	"github.com/jonwraymond/dashquery/cache"
)

// LoaderOf adapts a typed fetch function to a Loader.
func LoaderOf[T any](fn func(ctx context.Context) (T, error)) Loader {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

// Fetch reads key through r and awaits a value of type T.
func Fetch[T any](ctx context.Context, r Reader, key cache.Key, fn func(ctx context.Context) (T, error), opts ...ReadOption) (T, error) {
	return Await[T](ctx, r.Read(ctx, key, LoaderOf(fn), opts...))
}

// Await waits for f and asserts its value to T.
func Await[T any](ctx context.Context, f *Future) (T, error) {
	var zero T
	v, err := f.Await(ctx)
	if err != nil {
		return zero, err
	}
	return As[T](f.Key(), v)
}

// As asserts a cached value to T. A nil value yields the zero T.
func As[T any](key cache.Key, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %s holds %T, want %T", ErrTypeMismatch, key, v, zero)
	}
	return t, nil
}
