package history

import (
	"context"
	"io"
	"time"

	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"
)

const idField = "id"

type historyDocStore struct {
	coll *docstore.Collection
}

// NewHistoryDocStore create a history store using a gocloud.dev/docstore
// collection keyed by "id"
func NewHistoryDocStore(coll *docstore.Collection) UpdateHistoryStore {
	return &historyDocStore{
		coll: coll,
	}
}

func (s *historyDocStore) Append(ctx context.Context, deviceID string, at time.Time, updates map[string]interface{}) error {
	err := s.coll.Actions().Create(map[string]interface{}{
		idField:    deviceID + "/" + entryKey(at, updates),
		"deviceID": deviceID,
		"time":     timeKey(at),
		"updates":  updates,
	}).Do(ctx)
	if gcerrors.Code(err) == gcerrors.AlreadyExists {
		return ErrDuplicateEntry
	}
	return err
}

func (s *historyDocStore) InRange(ctx context.Context, deviceID string, start time.Time, end time.Time) ([]*Entry, error) {
	iter := s.coll.
		Query().
		Where("deviceID", "=", deviceID).
		Where("time", ">=", timeKey(start)).
		Where("time", "<=", timeKey(end)).
		OrderBy("time", docstore.Ascending).
		Get(ctx)
	defer iter.Stop()

	entries := make([]*Entry, 0)
	for {
		data := make(map[string]interface{})
		err := iter.Next(ctx, data)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		timeStr, _ := data["time"].(string)
		t, err := time.Parse(timeKeyLayout, timeStr)
		if err != nil {
			continue
		}
		updates, _ := data["updates"].(map[string]interface{})
		entries = append(entries, &Entry{
			Time:    t,
			Updates: updates,
		})
	}

	return entries, nil
}
