package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// deviceLocalStore saves device configurations locally on the filesystem,
// one JSON document per device.
type deviceLocalStore struct {
	db *bolt.DB
}

var devicesBucket = []byte("devices")

func NewDeviceLocalStore(db *bolt.DB) (DeviceStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(devicesBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &deviceLocalStore{
		db: db,
	}, nil
}

func readDocument(tx *bolt.Tx, id string) (map[string]interface{}, error) {
	raw := tx.Bucket(devicesBucket).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	doc := make(map[string]interface{})
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode device %s: %w", id, err)
	}
	return doc, nil
}

func writeDocument(tx *bolt.Tx, id string, doc map[string]interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return tx.Bucket(devicesBucket).Put([]byte(id), raw)
}

func (s *deviceLocalStore) GetConfig(ctx context.Context, id string) (*DeviceConfig, error) {
	var doc map[string]interface{}
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		doc, err = readDocument(tx, id)
		return err
	})
	if err != nil || doc == nil {
		return nil, err
	}
	return configFromDocument(doc)
}

func (s *deviceLocalStore) Exists(ctx context.Context, id string) (bool, error) {
	exists := false
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(devicesBucket).Get([]byte(id)) != nil
		return nil
	})
	return exists, err
}

func (s *deviceLocalStore) CreateDevice(ctx context.Context, id string, cfg *DeviceConfig) error {
	if cfg == nil {
		cfg = DefaultConfig(id)
	}
	doc, err := documentFromConfig(cfg)
	if err != nil {
		return err
	}
	doc["created"] = time.Now()
	doc[keyField] = id

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(devicesBucket).Get([]byte(id)) != nil {
			return fmt.Errorf("device %s already exists", id)
		}
		return writeDocument(tx, id, doc)
	})
}

func (s *deviceLocalStore) UpdateConfig(ctx context.Context, id string, updates map[string]interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			doc = map[string]interface{}{
				keyField:  id,
				"created": time.Now(),
			}
		}

		patch := make(map[string]interface{}, len(updates)+1)
		for k, v := range updates {
			patch[k] = v
		}
		delete(patch, keyField)
		patch["updated"] = time.Now()

		merged, err := mergeDocument(doc, patch)
		if err != nil {
			return err
		}
		return writeDocument(tx, id, merged)
	})
}

func (s *deviceLocalStore) ListDevices(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(devicesBucket).ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}
