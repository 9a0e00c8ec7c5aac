// Package devicecfg resolves device configurations and registrations through
// the result cache and keeps both entries coherent on updates.
package devicecfg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"com.aviebrantz.feedhub/pkg/cache"
	"com.aviebrantz.feedhub/pkg/core/store/devices"
)

var ErrConfigNotFound = errors.New("device config not found")

type TTLs struct {
	Config       time.Duration
	NotFound     time.Duration
	Registration time.Duration
}

// cachedConfig is what lands in the cache: either a configuration or the
// reason there is none.
type cachedConfig struct {
	Config *devices.DeviceConfig `json:"config,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type Loader struct {
	store        devices.DeviceStore
	cache        *cache.Store
	ttl          TTLs
	isRegistered func(context.Context, string) (bool, error)
	logger       *log.Entry
}

func NewLoader(store devices.DeviceStore, c *cache.Store, ttl TTLs) *Loader {
	l := &Loader{
		store:  store,
		cache:  c,
		ttl:    ttl,
		logger: log.WithField("module", "devicecfg"),
	}
	l.isRegistered = cache.Wrap(c, "exists", cache.Options[string, bool]{
		Prefix: "exists",
		TTL:    ttl.Registration,
		Key:    func(id string) string { return id },
	}, store.Exists)
	return l
}

func ConfigKey(deviceID string) string {
	return cache.Key("config", deviceID)
}

func ExistsKey(deviceID string) string {
	return cache.Key("exists", deviceID)
}

// LoadConfig returns the device configuration. Unknown devices yield
// ErrConfigNotFound, remembered for the short not-found TTL so polling by
// unregistered devices stays cheap.
func (l *Loader) LoadConfig(ctx context.Context, deviceID string) (*devices.DeviceConfig, error) {
	policy := cache.Policy[*cachedConfig]{
		TTLFunc: func(c *cachedConfig) time.Duration {
			if c.Error != "" {
				return l.ttl.NotFound
			}
			return l.ttl.Config
		},
	}

	res, err := cache.Compute(ctx, l.cache, ConfigKey(deviceID), policy, func(ctx context.Context) (*cachedConfig, error) {
		cfg, err := l.store.GetConfig(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("load config for %s: %w", deviceID, err)
		}
		if cfg == nil {
			return &cachedConfig{Error: fmt.Sprintf("no configuration found for device %s", deviceID)}, nil
		}
		return &cachedConfig{Config: cfg}, nil
	})
	if err != nil {
		l.logger.Errorf("%v", err)
		return nil, err
	}
	if res.Error != "" || res.Config == nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, deviceID)
	}
	return res.Config, nil
}

func (l *Loader) IsRegistered(ctx context.Context, deviceID string) (bool, error) {
	return l.isRegistered(ctx, deviceID)
}

// InvalidateDeviceCache drops the config and registration entries of a
// device.
func (l *Loader) InvalidateDeviceCache(ctx context.Context, deviceID string) error {
	return l.cache.Invalidate(ctx, ConfigKey(deviceID), ExistsKey(deviceID))
}

func (l *Loader) UpdateConfig(ctx context.Context, deviceID string, updates map[string]interface{}) error {
	if err := l.store.UpdateConfig(ctx, deviceID, updates); err != nil {
		return fmt.Errorf("update config for %s: %w", deviceID, err)
	}
	if err := l.InvalidateDeviceCache(ctx, deviceID); err != nil {
		l.logger.Warnf("invalidate cache for %s: %v", deviceID, err)
	}
	return nil
}

// ListDevices reads the registered device ids straight from the store.
func (l *Loader) ListDevices(ctx context.Context) ([]string, error) {
	return l.store.ListDevices(ctx)
}

// Register creates a device with the default configuration.
func (l *Loader) Register(ctx context.Context, deviceID string) (*devices.DeviceConfig, error) {
	cfg := devices.DefaultConfig(deviceID)
	if err := l.store.CreateDevice(ctx, deviceID, cfg); err != nil {
		return nil, fmt.Errorf("register %s: %w", deviceID, err)
	}
	if err := l.InvalidateDeviceCache(ctx, deviceID); err != nil {
		l.logger.Warnf("invalidate cache for %s: %v", deviceID, err)
	}
	l.logger.Infof("registered device %s", deviceID)
	return cfg, nil
}
