package quotes

import (
	"context"
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

var quotesBucket = []byte("quotes")

type batchLocalStore struct {
	db *bolt.DB
}

func NewBatchLocalStore(db *bolt.DB) (BatchStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(quotesBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &batchLocalStore{db: db}, nil
}

func (s *batchLocalStore) GetBatch(ctx context.Context) (*Batch, error) {
	var batch *Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(quotesBucket).Get([]byte(activeBatchID))
		if raw == nil {
			return nil
		}
		batch = &Batch{}
		return json.Unmarshal(raw, batch)
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *batchLocalStore) SaveBatch(ctx context.Context, batch *Batch) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(quotesBucket).Put([]byte(activeBatchID), raw)
	})
}
