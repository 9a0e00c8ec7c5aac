package cache

import (
	"context"
	"time"

	"github.com/apex/log"
)

// Janitor sweeps expired entries out of a backend on a fixed interval.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *log.Entry
}

func NewJanitor(sweeper Sweeper, interval time.Duration) *Janitor {
	return &Janitor{
		sweeper:  sweeper,
		interval: interval,
		logger:   log.WithField("module", "cache-janitor"),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	removed, err := j.sweeper.Sweep(ctx)
	if err != nil {
		j.logger.Warnf("sweep failed: %v", err)
		return
	}
	if removed > 0 {
		j.logger.Infof("swept %d expired entries", removed)
	}
}
