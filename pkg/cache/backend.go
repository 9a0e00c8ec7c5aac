// Package cache memoizes expensive producers behind a shared key-value
// backend. Values are JSON encoded so any backend that stores bytes can hold
// them.
package cache

import (
	"context"
	"time"
)

// Backend is the key-value capability the cache is built on. A miss is
// (nil, false, nil); err is reserved for backend failures.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Healthy(ctx context.Context) bool
	Close() error
}

// Sweeper is implemented by backends that cannot expire entries on their own
// and need an active sweep in addition to the check on read.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
