package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Invalidator is anything that can drop its cached entry.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Reference is one lazily loaded value kept under a single key. It is
// reloaded after ttl or after Invalidate. A failing store degrades to calling
// the loader on every Get.
type Reference[T any] struct {
	store Store
	key   string
	ttl   time.Duration
	load  func(ctx context.Context) (T, error)

	mu sync.Mutex
}

func NewReference[T any](store Store, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) *Reference[T] {
	return &Reference[T]{store: store, key: key, ttl: ttl, load: load}
}

func (r *Reference[T]) Key() string { return r.key }

func (r *Reference[T]) Get(ctx context.Context) (T, error) {
	var v T
	if ok, err := GetJSON(ctx, r.store, r.key, &v); err != nil {
		log.Warn().Err(err).Str("key", r.key).Msg("cache: read failed, loading from source")
	} else if ok {
		return v, nil
	}

	// One loader at a time per key; late arrivals find the fresh entry.
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok, err := GetJSON(ctx, r.store, r.key, &v); err == nil && ok {
		return v, nil
	}

	v, err := r.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := SetJSON(ctx, r.store, r.key, v, r.ttl); err != nil {
		log.Warn().Err(err).Str("key", r.key).Msg("cache: write failed")
	}
	return v, nil
}

func (r *Reference[T]) Invalidate(ctx context.Context) error {
	return r.store.Delete(ctx, r.key)
}

// InvalidateAll drops every entry and returns the first error met.
func InvalidateAll(ctx context.Context, refs ...Invalidator) error {
	var first error
	for _, ref := range refs {
		if err := ref.Invalidate(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
