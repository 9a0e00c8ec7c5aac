package cache

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/apex/log"
	"github.com/bluele/gcache"
	"go.opencensus.io/tag"
	"golang.org/x/sync/singleflight"
)

// Store couples a backend with per-key in-flight suppression and an
// in-process fallback map that takes over while the backend fails.
//
// Values handed out by the store may be shared between concurrent callers of
// the same key and must be treated as read-only.
type Store struct {
	backend  Backend
	fallback gcache.Cache
	group    singleflight.Group
	skip     bool
	logger   *log.Entry
}

type StoreOption func(*storeOptions)

type storeOptions struct {
	fallbackSize  int
	fallbackClock gcache.Clock
	skip          bool
}

// WithFallbackSize bounds the degraded-mode fallback map.
func WithFallbackSize(n int) StoreOption {
	return func(o *storeOptions) { o.fallbackSize = n }
}

func WithFallbackClock(c gcache.Clock) StoreOption {
	return func(o *storeOptions) { o.fallbackClock = c }
}

// WithSkipCache disables lookup and storage for every call on the store.
func WithSkipCache(skip bool) StoreOption {
	return func(o *storeOptions) { o.skip = skip }
}

func NewStore(backend Backend, opts ...StoreOption) *Store {
	o := storeOptions{fallbackSize: 1000, fallbackClock: gcache.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		backend:  backend,
		fallback: newLRU(o.fallbackSize, o.fallbackClock),
		skip:     o.skip,
		logger:   log.WithField("module", "cache"),
	}
}

// Policy controls how one call is cached.
type Policy[T any] struct {
	TTL time.Duration
	// TTLFunc, when set, picks the TTL from the produced value.
	TTLFunc   func(T) time.Duration
	SkipCache bool
}

func (p Policy[T]) ttlFor(v T) time.Duration {
	if p.TTLFunc != nil {
		return p.TTLFunc(v)
	}
	return p.TTL
}

// GetOrCompute returns the live cached value for key or runs produce and
// caches its non-nil result for ttl. Producer errors are returned and never
// cached. Backend failures only cost the cache, never the result.
func GetOrCompute[T any](ctx context.Context, s *Store, key string, ttl time.Duration, produce func(context.Context) (T, error)) (T, error) {
	return Compute(ctx, s, key, Policy[T]{TTL: ttl}, produce)
}

func Compute[T any](ctx context.Context, s *Store, key string, policy Policy[T], produce func(context.Context) (T, error)) (T, error) {
	if s == nil || s.skip || policy.SkipCache {
		return produce(ctx)
	}

	if v, ok := lookup[T](ctx, s, key); ok {
		record(ctx, key, MHits.M(1))
		return v, nil
	}
	record(ctx, key, MMisses.M(1))

	// The shared producer outlives any single caller; each caller stops
	// waiting on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		start := time.Now()
		v, err := produce(shared)
		record(shared, key, MProduceMs.M(sinceInMilliseconds(start)))
		if err != nil {
			return v, err
		}
		if !isNil(v) {
			s.put(shared, key, v, policy.ttlFor(v))
		}
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		v, _ := r.Val.(T)
		return v, nil
	}
}

func lookup[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var v T
	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warnf("backend get %s failed, using fallback: %v", key, err)
		record(ctx, key, MBackendErrors.M(1), tag.Upsert(KeyOp, "get"))
		data, found, _ = lruGet(s.fallback, key)
	}
	if !found {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warnf("discarding undecodable entry %s: %v", key, err)
		return v, false
	}
	return v, true
}

func (s *Store) put(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warnf("cannot encode value for %s: %v", key, err)
		return
	}
	if err := s.backend.Set(ctx, key, data, ttl); err != nil {
		s.logger.Warnf("backend set %s failed, using fallback: %v", key, err)
		record(ctx, key, MBackendErrors.M(1), tag.Upsert(KeyOp, "set"))
		_ = lruSet(s.fallback, key, data, ttl)
	}
}

// Invalidate removes keys from the backend and the fallback map.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, key := range keys {
		s.fallback.Remove(key)
		if err := s.backend.Delete(ctx, key); err != nil {
			record(ctx, key, MBackendErrors.M(1), tag.Upsert(KeyOp, "delete"))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) Healthy(ctx context.Context) bool {
	if s == nil {
		return false
	}
	return s.backend.Healthy(ctx)
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.fallback.Purge()
	return s.backend.Close()
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
