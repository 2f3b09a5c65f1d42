package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Loader fronts a Cache with singleflight so concurrent misses on the same
// key share one load. Invalidate bumps a generation counter; a load that
// started before the bump is returned to its callers but not cached.
type Loader[T any] struct {
	cache      Cache[T]
	group      singleflight.Group
	generation atomic.Uint64
	// mu makes the generation check and Set atomic with respect to
	// Invalidate.
	mu sync.Mutex
}

func NewLoader[T any](c Cache[T]) *Loader[T] {
	return &Loader[T]{cache: c}
}

// Get returns the cached value for key or calls load. The second result
// reports whether the value came from the cache.
func (l *Loader[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, true, nil
	}

	gen := l.generation.Load()
	// Loads started after an Invalidate never join an older flight.
	flight := strconv.FormatUint(gen, 10) + ":" + key
	v, err, _ := l.group.Do(flight, func() (interface{}, error) {
		// Detach from the first caller's cancellation; the result is shared.
		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		l.mu.Lock()
		if l.generation.Load() == gen {
			l.cache.Set(key, v)
		}
		l.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Invalidate drops every cached value.
func (l *Loader[T]) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation.Add(1)
	l.cache.Clear()
}
