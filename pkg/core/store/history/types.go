package history

import (
	"context"
	"errors"
	"time"

	"com.aviebrantz.feedhub/pkg/cache"
)

// ErrDuplicateEntry is returned by Append when the same update was already
// recorded for that instant.
var ErrDuplicateEntry = errors.New("history entry already recorded")

// UpdateHistoryStore keeps every configuration update a device received.
type UpdateHistoryStore interface {
	Append(ctx context.Context, deviceID string, at time.Time, updates map[string]interface{}) error
	InRange(ctx context.Context, deviceID string, start time.Time, end time.Time) ([]*Entry, error)
}

type Entry struct {
	Time    time.Time              `json:"time"`
	Updates map[string]interface{} `json:"updates"`
}

// timeKeyLayout sorts lexically in time order.
const timeKeyLayout = "2006-01-02T15:04:05.000000000Z"

func timeKey(t time.Time) string {
	return t.UTC().Format(timeKeyLayout)
}

// entryKey is the time key followed by a digest of the updates, so distinct
// updates sharing a timestamp get distinct keys and a redelivered message
// maps onto the key it already wrote.
func entryKey(t time.Time, updates map[string]interface{}) string {
	return timeKey(t) + "/" + cache.ShortHash(updates)
}

func parseEntryTime(key string) (time.Time, error) {
	if len(key) > len(timeKeyLayout) {
		key = key[:len(timeKeyLayout)]
	}
	return time.Parse(timeKeyLayout, key)
}
