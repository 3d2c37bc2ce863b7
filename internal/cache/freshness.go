package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahmeda07-gh/SkyGuard/internal/observability"
)

// RefreshFunc populates a cache entry from upstream.
type RefreshFunc[T any] func(ctx context.Context) (T, error)

// Freshness is a time-bounded memoization layer over a Store. A value
// younger than the TTL is served without invoking the refresh function;
// otherwise the refresh runs and its result supersedes the entry in place.
// Concurrent refreshes of the same key are coalesced so at most one
// upstream call is in flight per key.
//
// Refresh failures are returned to the caller, which owns fallback policy;
// this layer never retries or substitutes data.
type Freshness[T any] struct {
	store  Store[T]
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[string]*refreshCall[T]
}

type refreshCall[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// NewFreshness wraps store with TTL-bounded refresh semantics.
func NewFreshness[T any](store Store[T], ttl time.Duration, logger *zap.Logger) *Freshness[T] {
	return &Freshness[T]{
		store:    store,
		ttl:      ttl,
		logger:   logger,
		inFlight: make(map[string]*refreshCall[T]),
	}
}

// GetOrRefresh returns the entry for key. cached reports whether the value
// came from the store without invoking refresh. When another goroutine is
// already refreshing the key, the call waits for that result instead of
// issuing a duplicate upstream call.
//
// Store failures are treated as misses: the cache degrades to pass-through
// rather than failing the request.
func (f *Freshness[T]) GetOrRefresh(ctx context.Context, key string, refresh RefreshFunc[T]) (value T, cached bool, err error) {
	v, ok, getErr := f.store.Get(ctx, key)
	if getErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		if f.logger != nil {
			f.logger.Warn("cache get failed", zap.String("key", key), zap.Error(getErr))
		}
	} else if ok {
		return v, true, nil
	}

	f.mu.Lock()
	if call, exists := f.inFlight[key]; exists {
		f.mu.Unlock()
		select {
		case <-call.done:
			return call.value, false, call.err
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		}
	}
	call := &refreshCall[T]{done: make(chan struct{})}
	f.inFlight[key] = call
	f.mu.Unlock()

	// The refresh runs detached from the caller's cancellation: one client
	// disconnecting must neither skip cache population nor fail coalesced
	// waiters. Upstream clients bound their own call timeouts.
	refreshCtx := context.WithoutCancel(ctx)
	go func() {
		call.value, call.err = refresh(refreshCtx)
		if call.err == nil {
			f.put(refreshCtx, key, call.value)
		}
		f.mu.Lock()
		delete(f.inFlight, key)
		f.mu.Unlock()
		close(call.done)
	}()

	select {
	case <-call.done:
		return call.value, false, call.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Put stores a value directly, bypassing refresh. Used by callers to cache
// fallback results so a known-bad upstream is not retried within the TTL.
func (f *Freshness[T]) Put(ctx context.Context, key string, value T) {
	f.put(ctx, key, value)
}

func (f *Freshness[T]) put(ctx context.Context, key string, value T) {
	if err := f.store.Set(ctx, key, value, f.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		if f.logger != nil {
			f.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
}
