package configupdates

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"
)

type recordingUpdater struct {
	mu       sync.Mutex
	failures int
	attempts int
	applied  map[string][]map[string]interface{}
}

func (u *recordingUpdater) UpdateConfig(ctx context.Context, deviceID string, updates map[string]interface{}) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.attempts++
	if u.failures > 0 {
		u.failures--
		return errors.New("store unavailable")
	}
	if u.applied == nil {
		u.applied = map[string][]map[string]interface{}{}
	}
	u.applied[deviceID] = append(u.applied[deviceID], updates)
	return nil
}

func (u *recordingUpdater) snapshot() (int, map[string][]map[string]interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := map[string][]map[string]interface{}{}
	for k, v := range u.applied {
		out[k] = v
	}
	return u.attempts, out
}

func startIngestor(t *testing.T, updater Updater) *pubsub.Topic {
	ctx := context.Background()
	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, 50*time.Millisecond)

	done := make(chan struct{})
	go func() {
		NewIngestor(sub, updater).Start(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		sub.Shutdown(ctx)
		topic.Shutdown(ctx)
		<-done
	})
	return topic
}

func TestIngestorAppliesUpdates(t *testing.T) {
	ctx := context.Background()
	updater := &recordingUpdater{}
	topic := startIngestor(t, updater)

	require.NoError(t, topic.Send(ctx, &pubsub.Message{
		Body:     []byte(`{"weather": {"hourThreshold": 19}}`),
		Metadata: map[string]string{"deviceID": "esp-1", "time": time.Now().Format(time.RFC3339)},
	}))

	assert.Eventually(t, func() bool {
		_, applied := updater.snapshot()
		return len(applied["esp-1"]) == 1
	}, time.Second, 10*time.Millisecond)

	_, applied := updater.snapshot()
	weather := applied["esp-1"][0]["weather"].(map[string]interface{})
	assert.Equal(t, float64(19), weather["hourThreshold"])
}

func TestIngestorDropsMalformed(t *testing.T) {
	ctx := context.Background()
	updater := &recordingUpdater{}
	topic := startIngestor(t, updater)

	require.NoError(t, topic.Send(ctx, &pubsub.Message{
		Body:     []byte(`not json`),
		Metadata: map[string]string{"deviceID": "esp-1"},
	}))
	require.NoError(t, topic.Send(ctx, &pubsub.Message{
		Body: []byte(`{"a": 1}`),
	}))
	require.NoError(t, topic.Send(ctx, &pubsub.Message{
		Body:     []byte(`{"location.zipCode": "10249"}`),
		Metadata: map[string]string{"deviceID": "esp-2"},
	}))

	assert.Eventually(t, func() bool {
		_, applied := updater.snapshot()
		return len(applied["esp-2"]) == 1
	}, time.Second, 10*time.Millisecond)

	attempts, applied := updater.snapshot()
	assert.Equal(t, 1, attempts)
	assert.Empty(t, applied["esp-1"])
}

func TestIngestorRedeliversOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	updater := &recordingUpdater{failures: 1}
	topic := startIngestor(t, updater)

	require.NoError(t, topic.Send(ctx, &pubsub.Message{
		Body:     []byte(`{"offers.searchKeywords": ["chips"]}`),
		Metadata: map[string]string{"deviceID": "esp-1"},
	}))

	assert.Eventually(t, func() bool {
		_, applied := updater.snapshot()
		return len(applied["esp-1"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	attempts, _ := updater.snapshot()
	assert.Equal(t, 2, attempts)
}
