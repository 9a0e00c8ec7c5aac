package cache

import (
	"context"
	"time"
)

// Options configure a wrapped producer.
type Options[A, T any] struct {
	// Prefix defaults to "cache".
	Prefix string
	TTL    time.Duration
	// TTLFunc overrides TTL per produced value.
	TTLFunc func(T) time.Duration
	// Key builds the key from the argument. The default is
	// "<name>:<ShortHash(arg)>".
	Key       func(A) string
	SkipCache bool
}

// Wrap returns fn memoized in s. The wrapped function keeps fn's contract:
// same argument, same result type, producer errors passed through.
func Wrap[A, T any](s *Store, name string, opts Options[A, T], fn func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "cache"
	}
	policy := Policy[T]{TTL: opts.TTL, TTLFunc: opts.TTLFunc, SkipCache: opts.SkipCache}

	return func(ctx context.Context, arg A) (T, error) {
		var raw string
		if opts.Key != nil {
			raw = opts.Key(arg)
		} else {
			raw = Key(name, ShortHash(arg))
		}
		return Compute(ctx, s, Key(prefix, raw), policy, func(ctx context.Context) (T, error) {
			return fn(ctx, arg)
		})
	}
}
