package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
)

// MemoryBackend keeps entries in a bounded in-process LRU. Expiry is
// checked lazily when an entry is read.
type MemoryBackend struct {
	c gcache.Cache
}

func NewMemoryBackend(size int) *MemoryBackend {
	return NewMemoryBackendWithClock(size, gcache.NewRealClock())
}

func NewMemoryBackendWithClock(size int, clock gcache.Clock) *MemoryBackend {
	return &MemoryBackend{
		c: newLRU(size, clock),
	}
}

func newLRU(size int, clock gcache.Clock) gcache.Cache {
	if size <= 0 {
		size = 1000
	}
	return gcache.New(size).LRU().Clock(clock).Build()
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return lruGet(m.c, key)
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return lruSet(m.c, key, value, ttl)
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.c.Remove(key)
	return nil
}

func (m *MemoryBackend) Healthy(ctx context.Context) bool {
	return true
}

func (m *MemoryBackend) Close() error {
	m.c.Purge()
	return nil
}

func lruGet(c gcache.Cache, key string) ([]byte, bool, error) {
	v, err := c.Get(key)
	if err == gcache.KeyNotFoundError {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("unexpected value type %T for key %s", v, key)
	}
	return b, true, nil
}

func lruSet(c gcache.Cache, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 {
		return c.SetWithExpire(key, value, ttl)
	}
	return c.Set(key, value)
}
