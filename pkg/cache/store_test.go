package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluele/gcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct {
	getErr, setErr error
	sets           int32
}

func (f *failingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, f.getErr
}

func (f *failingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	atomic.AddInt32(&f.sets, 1)
	return f.setErr
}

func (f *failingBackend) Delete(ctx context.Context, key string) error { return nil }
func (f *failingBackend) Healthy(ctx context.Context) bool             { return false }
func (f *failingBackend) Close() error                                 { return nil }

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func counter(calls *int32, v *payload) func(context.Context) (*payload, error) {
	return func(context.Context) (*payload, error) {
		atomic.AddInt32(calls, 1)
		return v, nil
	}
}

func TestGetOrComputeHit(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(10))

	var calls int32
	produce := counter(&calls, &payload{Name: "a", Count: 1})

	v1, err := GetOrCompute(ctx, s, "feed:a", time.Minute, produce)
	require.NoError(t, err)
	v2, err := GetOrCompute(ctx, s, "feed:a", time.Minute, produce)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, v1, v2)
	assert.Equal(t, "a", v2.Name)
}

func TestGetOrComputeErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(10))

	boom := errors.New("boom")
	calls := 0
	produce := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 42, nil
	}

	_, err := GetOrCompute(ctx, s, "n", time.Minute, produce)
	assert.ErrorIs(t, err, boom)

	v, err := GetOrCompute(ctx, s, "n", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeNilNotCached(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(10))

	var calls int32
	produce := func(context.Context) (*payload, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		v, err := GetOrCompute(ctx, s, "nil", time.Minute, produce)
		require.NoError(t, err)
		assert.Nil(t, v)
	}
	assert.Equal(t, int32(2), calls)
}

func TestGetOrComputeBackendFailure(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{
		getErr: errors.New("connection refused"),
		setErr: errors.New("connection refused"),
	}
	s := NewStore(backend)

	var calls int32
	produce := counter(&calls, &payload{Name: "degraded"})

	v, err := GetOrCompute(ctx, s, "k", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, "degraded", v.Name)

	// second call is served from the fallback map
	v, err = GetOrCompute(ctx, s, "k", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, "degraded", v.Name)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.sets))
}

func TestFallbackEntriesExpire(t *testing.T) {
	ctx := context.Background()
	clock := gcache.NewFakeClock()
	backend := &failingBackend{
		getErr: errors.New("connection refused"),
		setErr: errors.New("connection refused"),
	}
	s := NewStore(backend, WithFallbackSize(10), WithFallbackClock(clock))

	var calls int32
	produce := counter(&calls, &payload{Name: "degraded"})

	_, err := GetOrCompute(ctx, s, "k", time.Minute, produce)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	_, err = GetOrCompute(ctx, s, "k", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)
}

func TestGetOrComputeSkipCache(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(10)

	var calls int32
	produce := counter(&calls, &payload{Name: "x"})

	skipping := NewStore(backend, WithSkipCache(true))
	for i := 0; i < 3; i++ {
		_, err := GetOrCompute(ctx, skipping, "k", time.Minute, produce)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls)

	_, found, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	s := NewStore(backend)
	policy := Policy[*payload]{TTL: time.Minute, SkipCache: true}
	_, err = Compute(ctx, s, "k", policy, produce)
	require.NoError(t, err)
	_, found, _ = backend.Get(ctx, "k")
	assert.False(t, found)
}

func TestComputeTTLFunc(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(10)
	s := NewStore(backend)

	policy := Policy[*payload]{
		TTL: time.Hour,
		TTLFunc: func(p *payload) time.Duration {
			if p.Name == "fallback" {
				return 0
			}
			return time.Hour
		},
	}

	var calls int32
	_, err := Compute(ctx, s, "q", policy, counter(&calls, &payload{Name: "fallback"}))
	require.NoError(t, err)
	_, found, _ := backend.Get(ctx, "q")
	assert.False(t, found, "zero ttl must not be stored")

	_, err = Compute(ctx, s, "q", policy, counter(&calls, &payload{Name: "real"}))
	require.NoError(t, err)
	_, found, _ = backend.Get(ctx, "q")
	assert.True(t, found)
}

func TestGetOrComputeSingleflight(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(10))

	var calls int32
	release := make(chan struct{})
	produce := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := GetOrCompute(ctx, s, "hot", time.Minute, produce)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	v, err := GetOrCompute(ctx, s, "hot", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, "shared", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSharedProduceSurvivesCallerCancel(t *testing.T) {
	s := NewStore(NewMemoryBackend(10))

	started := make(chan struct{})
	release := make(chan struct{})
	produce := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "fresh", nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := GetOrCompute(leaderCtx, s, "k", time.Minute, produce)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, err := GetOrCompute(context.Background(), s, "k", time.Minute, produce)
		follower <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	r := <-follower
	require.NoError(t, r.err)
	assert.Equal(t, "fresh", r.v)

	v, err := GetOrCompute(context.Background(), s, "k", time.Minute, func(context.Context) (string, error) {
		return "", errors.New("should be cached")
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(10))

	var calls int32
	produce := counter(&calls, &payload{Name: "cfg"})

	_, err := GetOrCompute(ctx, s, "config:dev1", time.Minute, produce)
	require.NoError(t, err)
	require.NoError(t, s.Invalidate(ctx, "config:dev1", "exists:dev1"))
	_, err = GetOrCompute(ctx, s, "config:dev1", time.Minute, produce)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls)
}

func TestNilStorePassesThrough(t *testing.T) {
	v, err := GetOrCompute(context.Background(), nil, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	var s *Store
	assert.NoError(t, s.Invalidate(context.Background(), "k"))
	assert.False(t, s.Healthy(context.Background()))
	assert.NoError(t, s.Close())
}

func TestWrap(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(10)
	s := NewStore(backend)

	calls := 0
	double := Wrap(s, "double", Options[int, int]{TTL: time.Minute}, func(ctx context.Context, n int) (int, error) {
		calls++
		return n * 2, nil
	})

	for i := 0; i < 2; i++ {
		v, err := double(ctx, 21)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	v, err := double(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, calls)

	_, found, _ := backend.Get(ctx, "cache:double:"+ShortHash(21))
	assert.True(t, found)
}

func TestWrapCustomKey(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(10)
	s := NewStore(backend)

	lookup := Wrap(s, "lookup", Options[string, string]{
		Prefix: "exists",
		TTL:    time.Minute,
		Key:    func(id string) string { return id },
	}, func(ctx context.Context, id string) (string, error) {
		return "yes:" + id, nil
	})

	v, err := lookup(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, "yes:dev1", v)

	_, found, _ := backend.Get(ctx, "exists:dev1")
	assert.True(t, found)
}

func TestShortHash(t *testing.T) {
	h := ShortHash(map[string]interface{}{"a": 1})
	assert.Len(t, h, 12)
	assert.Equal(t, h, ShortHash(map[string]interface{}{"a": 1}))
	assert.NotEqual(t, h, ShortHash(map[string]interface{}{"a": 2}))

	assert.Equal(t, "departures:unknown:"+ShortHash([]interface{}{1}), DeviceKey("departures", "", 1))
	assert.Equal(t, "a:b:c", Key("a", "b", "c"))
}
