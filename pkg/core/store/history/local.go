package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

type localHistoryStore struct {
	db *bolt.DB
}

func NewHistoryLocalStore(db *bolt.DB) UpdateHistoryStore {
	return &localHistoryStore{
		db: db,
	}
}

func getBucketName(deviceID string) []byte {
	return []byte(fmt.Sprintf("history_%s", deviceID))
}

func (s *localHistoryStore) Append(ctx context.Context, deviceID string, at time.Time, updates map[string]interface{}) error {
	value, err := json.Marshal(updates)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		buck, err := tx.CreateBucketIfNotExists(getBucketName(deviceID))
		if err != nil {
			return err
		}
		key := []byte(entryKey(at, updates))
		if buck.Get(key) != nil {
			return ErrDuplicateEntry
		}
		return buck.Put(key, value)
	})
}

func (s *localHistoryStore) InRange(ctx context.Context, deviceID string, start time.Time, end time.Time) ([]*Entry, error) {
	entries := make([]*Entry, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		min := []byte(timeKey(start))
		max := timeKey(end)

		buck := tx.Bucket(getBucketName(deviceID))
		if buck == nil {
			return nil
		}

		c := buck.Cursor()
		for k, v := c.Seek(min); k != nil; k, v = c.Next() {
			t, err := parseEntryTime(string(k))
			if err != nil {
				continue
			}
			if timeKey(t) > max {
				break
			}

			updates := make(map[string]interface{})
			if err := json.Unmarshal(v, &updates); err != nil {
				continue
			}

			entries = append(entries, &Entry{
				Time:    t,
				Updates: updates,
			})
		}
		return nil
	})

	return entries, err
}
