package configupdates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apex/log"
	"gocloud.dev/pubsub"
)

// Updater applies nested or dotted configuration updates to a device.
type Updater interface {
	UpdateConfig(ctx context.Context, deviceID string, updates map[string]interface{}) error
}

type ConfigUpdateIngestor struct {
	updateSub *pubsub.Subscription
	updater   Updater
	logger    *log.Entry
}

func NewIngestor(updateSub *pubsub.Subscription, updater Updater) *ConfigUpdateIngestor {
	return &ConfigUpdateIngestor{
		updateSub: updateSub,
		updater:   updater,
		logger:    log.WithField("module", "config-ingestor"),
	}
}

// Start receives messages until the subscription is shut down or ctx is done.
func (ci *ConfigUpdateIngestor) Start(ctx context.Context) {
	for {
		msg, err := ci.updateSub.Receive(ctx)
		if err != nil {
			ci.logger.Warnf("err receiving message: %v", err)
			return
		}
		ci.handle(ctx, msg)
	}
}

func (ci *ConfigUpdateIngestor) handle(ctx context.Context, msg *pubsub.Message) {
	deviceID := msg.Metadata["deviceID"]
	reportedTime, err := time.Parse(time.RFC3339Nano, msg.Metadata["time"])
	if err != nil {
		reportedTime = time.Now()
	}

	ci.logger.Infof("Got message: %s - %v - %q", deviceID, reportedTime, msg.Body)

	if deviceID == "" {
		ci.logger.Warnf("Dropping message without device id")
		msg.Ack()
		return
	}

	var updates map[string]interface{}
	if err := json.Unmarshal(msg.Body, &updates); err != nil || len(updates) == 0 {
		ci.logger.Warnf("Invalid msg format: %v", err)
		// Drop msg
		msg.Ack()
		return
	}

	if err := ci.updater.UpdateConfig(ctx, deviceID, updates); err != nil {
		ci.logger.Errorf("err update device %s: %v", deviceID, err)
		msg.Nack()
		return
	}

	msg.Ack()
}
