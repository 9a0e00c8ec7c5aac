package cache

import (
	"context"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("cache")

type boltEntry struct {
	Value     []byte `cbor:"value"`
	ExpiresAt int64  `cbor:"expiresAt"`
}

// BoltBackend stores entries in a bbolt file. Entries carry their own expiry;
// reads ignore expired entries and Sweep removes them.
type BoltBackend struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBoltBackend(db *bolt.DB) (*BoltBackend, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &BoltBackend{db: db, now: time.Now}, nil
}

func OpenBoltBackend(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	b, err := NewBoltBackend(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cacheBucket).Get([]byte(key))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false, err
	}

	var entry boltEntry
	if err := cbor.Unmarshal(raw, &entry); err != nil {
		return nil, false, err
	}
	if expired(unixOrZero(entry.ExpiresAt), b.now()) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (b *BoltBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := boltEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = b.now().Add(ttl).UnixNano()
	}
	raw, err := cbor.Marshal(entry)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(key), raw)
	})
}

func (b *BoltBackend) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Delete([]byte(key))
	})
}

// Sweep deletes every expired entry and reports how many were removed.
func (b *BoltBackend) Sweep(ctx context.Context) (int, error) {
	now := b.now()
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		buck := tx.Bucket(cacheBucket)
		var stale [][]byte
		cur := buck.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			var entry boltEntry
			if err := cbor.Unmarshal(v, &entry); err != nil || expired(unixOrZero(entry.ExpiresAt), now) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := buck.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (b *BoltBackend) Healthy(ctx context.Context) bool {
	return b.db.View(func(tx *bolt.Tx) error { return nil }) == nil
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func unixOrZero(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
