package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"gocloud.dev/docstore/memdocstore"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"

	"com.aviebrantz.feedhub/pkg/core/store/history"
)

func TestHistoryIngestorRecordsUpdates(t *testing.T) {
	ctx := context.Background()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "history.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	store := history.NewHistoryLocalStore(db)

	topic := mempubsub.NewTopic()
	defer topic.Shutdown(ctx)
	sub := mempubsub.NewSubscription(topic, time.Second)

	done := make(chan struct{})
	go func() {
		NewIngestor(sub, store).Start(ctx)
		close(done)
	}()

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, topic.Send(ctx, &pubsub.Message{
		Body:     []byte(`broken`),
		Metadata: map[string]string{"deviceID": "esp-1"},
	}))
	require.NoError(t, topic.Send(ctx, &pubsub.Message{
		Body:     []byte(`{"weather": {"hourThreshold": 19}}`),
		Metadata: map[string]string{"deviceID": "esp-1", "time": at.Format(time.RFC3339)},
	}))

	assert.Eventually(t, func() bool {
		entries, err := store.InRange(ctx, "esp-1", at.Add(-time.Minute), at.Add(time.Minute))
		return err == nil && len(entries) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Shutdown(ctx))
	<-done
}

func TestHistoryIngestorSameSecondUpdates(t *testing.T) {
	ctx := context.Background()
	coll, err := memdocstore.OpenCollection("id", nil)
	require.NoError(t, err)
	defer coll.Close()
	store := history.NewHistoryDocStore(coll)

	topic := mempubsub.NewTopic()
	defer topic.Shutdown(ctx)
	sub := mempubsub.NewSubscription(topic, time.Second)

	done := make(chan struct{})
	go func() {
		NewIngestor(sub, store).Start(ctx)
		close(done)
	}()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	meta := map[string]string{"deviceID": "dev", "time": at.Format(time.RFC3339)}
	for _, body := range []string{`{"a": 1}`, `{"b": 2}`, `{"b": 2}`} {
		require.NoError(t, topic.Send(ctx, &pubsub.Message{Body: []byte(body), Metadata: meta}))
	}

	assert.Eventually(t, func() bool {
		entries, err := store.InRange(ctx, "dev", at, at)
		return err == nil && len(entries) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Shutdown(ctx))
	<-done
}
