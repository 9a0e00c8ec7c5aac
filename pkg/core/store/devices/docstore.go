package devices

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apex/log"
	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"
)

const keyField = "deviceId"

type deviceDocStore struct {
	devicesColl *docstore.Collection
	logger      *log.Entry
}

// NewDeviceDocStore create a device store using a gocloud.dev/docstore
// collection keyed by "deviceId"
func NewDeviceDocStore(devicesColl *docstore.Collection) DeviceStore {
	return &deviceDocStore{
		devicesColl: devicesColl,
		logger:      log.WithField("module", "device-docstore"),
	}
}

func (s *deviceDocStore) getDocument(ctx context.Context, id string) (map[string]interface{}, error) {
	deviceDoc := map[string]interface{}{keyField: id}
	err := s.devicesColl.Get(ctx, deviceDoc)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return deviceDoc, nil
}

func (s *deviceDocStore) GetConfig(ctx context.Context, id string) (*DeviceConfig, error) {
	deviceDoc, err := s.getDocument(ctx, id)
	if err != nil || deviceDoc == nil {
		return nil, err
	}
	cfg, err := configFromDocument(deviceDoc)
	if err != nil {
		return nil, fmt.Errorf("decode config for %s: %w", id, err)
	}
	return cfg, nil
}

func (s *deviceDocStore) Exists(ctx context.Context, id string) (bool, error) {
	iter := s.devicesColl.
		Query().
		Where(docstore.FieldPath(keyField), "=", id).
		Limit(1).
		Get(ctx, docstore.FieldPath(keyField))
	defer iter.Stop()

	doc := map[string]interface{}{}
	err := iter.Next(ctx, doc)
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (s *deviceDocStore) CreateDevice(ctx context.Context, id string, cfg *DeviceConfig) error {
	if cfg == nil {
		cfg = DefaultConfig(id)
	}
	doc, err := documentFromConfig(cfg)
	if err != nil {
		return err
	}
	doc["created"] = time.Now()
	doc[keyField] = id
	return s.devicesColl.Create(ctx, doc)
}

func (s *deviceDocStore) UpdateConfig(ctx context.Context, id string, updates map[string]interface{}) error {
	deviceDoc, err := s.getDocument(ctx, id)
	if err != nil {
		return err
	}

	if deviceDoc == nil {
		if err := s.CreateDevice(ctx, id, &DeviceConfig{DeviceID: id}); err != nil {
			return err
		}
		deviceDoc = map[string]interface{}{keyField: id}
	}

	nestedUpdates, err := flattenUpdates(updates)
	if err != nil {
		s.logger.Errorf("invalid update format: %v", err)
		return err
	}
	delete(nestedUpdates, keyField)

	nestedUpdates["updated"] = time.Now()
	mods := docstore.Mods{}
	for k, v := range nestedUpdates {
		mods[docstore.FieldPath(k)] = v
	}

	return s.devicesColl.Actions().Update(deviceDoc, mods).Do(ctx)
}

func (s *deviceDocStore) ListDevices(ctx context.Context) ([]string, error) {
	iter := s.devicesColl.
		Query().
		Get(ctx, docstore.FieldPath(keyField))
	defer iter.Stop()

	ids := make([]string, 0)
	for {
		doc := map[string]interface{}{}
		err := iter.Next(ctx, doc)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if id, ok := doc[keyField].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
