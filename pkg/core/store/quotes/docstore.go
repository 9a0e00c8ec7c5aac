package quotes

import (
	"context"
	"time"

	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"
)

type batchDocument struct {
	ID        string    `docstore:"id"`
	Quotes    []Quote   `docstore:"quotes"`
	ExpiresAt time.Time `docstore:"expiresAt"`
	UpdatedAt time.Time `docstore:"updatedAt"`
}

type batchDocStore struct {
	coll *docstore.Collection
}

// NewBatchDocStore stores the batch in a collection keyed by "id".
func NewBatchDocStore(coll *docstore.Collection) BatchStore {
	return &batchDocStore{coll: coll}
}

func (s *batchDocStore) GetBatch(ctx context.Context) (*Batch, error) {
	doc := &batchDocument{ID: activeBatchID}
	if err := s.coll.Get(ctx, doc); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return &Batch{Quotes: doc.Quotes, ExpiresAt: doc.ExpiresAt}, nil
}

func (s *batchDocStore) SaveBatch(ctx context.Context, batch *Batch) error {
	return s.coll.Put(ctx, &batchDocument{
		ID:        activeBatchID,
		Quotes:    batch.Quotes,
		ExpiresAt: batch.ExpiresAt,
		UpdatedAt: time.Now(),
	})
}
