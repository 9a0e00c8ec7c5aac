package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/apex/log"
	"gocloud.dev/pubsub"

	"com.aviebrantz.feedhub/pkg/core/store/history"
)

// HistoryIngestor records every config update message it receives.
type HistoryIngestor struct {
	updateSub *pubsub.Subscription
	store     history.UpdateHistoryStore
	logger    *log.Entry
}

func NewIngestor(updateSub *pubsub.Subscription, store history.UpdateHistoryStore) *HistoryIngestor {
	return &HistoryIngestor{
		updateSub: updateSub,
		store:     store,
		logger:    log.WithField("module", "history-ingestor"),
	}
}

func (hi *HistoryIngestor) Start(ctx context.Context) {
	for {
		msg, err := hi.updateSub.Receive(ctx)
		if err != nil {
			hi.logger.Infof("Receiving message: %v", err)
			return
		}

		deviceID := msg.Metadata["deviceID"]
		reportedTime, err := time.Parse(time.RFC3339Nano, msg.Metadata["time"])
		if err != nil {
			reportedTime = time.Now()
		}

		var updates map[string]interface{}
		if deviceID == "" || json.Unmarshal(msg.Body, &updates) != nil {
			hi.logger.Warnf("Invalid msg format for device %q", deviceID)
			// Drop msg
			msg.Ack()
			continue
		}

		err = hi.store.Append(ctx, deviceID, reportedTime, updates)
		if errors.Is(err, history.ErrDuplicateEntry) {
			hi.logger.Debugf("Duplicate config update for device %q", deviceID)
			msg.Ack()
			continue
		}
		if err != nil {
			hi.logger.Errorf("err insert config history: %v", err)
			msg.Nack()
			continue
		}

		msg.Ack()
	}
}
