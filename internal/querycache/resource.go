package querycache

import (
	"context"
	"time"
)

// Resource is a typed view over one cache key.
type Resource[T any] struct {
	cache     *Cache
	key       string
	freshness time.Duration
}

func NewResource[T any](c *Cache, key string, freshness time.Duration) Resource[T] {
	return Resource[T]{cache: c, key: key, freshness: freshness}
}

func (r Resource[T]) Key() string { return r.key }

// Get reads the entry without loading.
func (r Resource[T]) Get() (T, Entry) {
	e := r.cache.Get(r.key, GetOptions{Freshness: r.freshness})
	v, _ := Value[T](e)
	return v, e
}

// GetOrLoad reads the entry and starts load in the background when it is missing or stale.
func (r Resource[T]) GetOrLoad(load func(ctx context.Context) (T, error)) (T, Entry) {
	e := r.cache.Get(r.key, GetOptions{
		Enabled:   true,
		Loader:    erase(load),
		Freshness: r.freshness,
	})
	v, _ := Value[T](e)
	return v, e
}

func (r Resource[T]) Fetch(ctx context.Context, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := r.cache.Fetch(ctx, r.key, erase(load))
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, nil
	}
	return typed, nil
}

func (r Resource[T]) Set(v T) { r.cache.SetValue(r.key, v) }

func (r Resource[T]) Invalidate() { r.cache.Invalidate(r.key) }

// Value extracts a typed value from an entry. ok is false when the entry has no
// value or holds a different type.
func Value[T any](e Entry) (T, bool) {
	var zero T
	if !e.HasValue {
		return zero, false
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

func erase[T any](load func(ctx context.Context) (T, error)) Loader {
	if load == nil {
		return nil
	}
	return func(ctx context.Context) (interface{}, error) {
		return load(ctx)
	}
}
