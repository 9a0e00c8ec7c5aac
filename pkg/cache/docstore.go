package cache

import (
	"context"
	"io"
	"time"

	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"
)

type cacheDocument struct {
	Key       string    `docstore:"key"`
	Value     []byte    `docstore:"value"`
	ExpiresAt time.Time `docstore:"expiresAt"`
	UpdatedAt time.Time `docstore:"updatedAt"`
}

const healthProbeKey = "__health__"

// DocstoreBackend keeps entries in a document collection keyed by "key".
// Mongo deployments can add a TTL index on expiresAt; without one, reads
// skip expired documents and Sweep deletes them.
type DocstoreBackend struct {
	coll *docstore.Collection
	now  func() time.Time
}

func NewDocstoreBackend(coll *docstore.Collection) *DocstoreBackend {
	return &DocstoreBackend{coll: coll, now: time.Now}
}

func (d *DocstoreBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	doc := &cacheDocument{Key: key}
	if err := d.coll.Get(ctx, doc); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	if expired(doc.ExpiresAt, d.now()) {
		return nil, false, nil
	}
	return doc.Value, true, nil
}

func (d *DocstoreBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := d.now()
	doc := &cacheDocument{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
	}
	if ttl > 0 {
		doc.ExpiresAt = now.Add(ttl)
	}
	return d.coll.Put(ctx, doc)
}

func (d *DocstoreBackend) Delete(ctx context.Context, key string) error {
	err := d.coll.Delete(ctx, &cacheDocument{Key: key})
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return err
	}
	return nil
}

func (d *DocstoreBackend) Sweep(ctx context.Context) (int, error) {
	iter := d.coll.
		Query().
		Where("expiresAt", "<", d.now()).
		Get(ctx, "key", "expiresAt")
	defer iter.Stop()

	actions := d.coll.Actions()
	removed := 0
	for {
		doc := &cacheDocument{}
		err := iter.Next(ctx, doc)
		if err == io.EOF {
			break
		} else if err != nil {
			return removed, err
		}
		if doc.ExpiresAt.IsZero() {
			continue
		}
		actions.Delete(doc)
		removed++
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, actions.Do(ctx)
}

func (d *DocstoreBackend) Healthy(ctx context.Context) bool {
	err := d.coll.Get(ctx, &cacheDocument{Key: healthProbeKey})
	return err == nil || gcerrors.Code(err) == gcerrors.NotFound
}

func (d *DocstoreBackend) Close() error {
	return d.coll.Close()
}
