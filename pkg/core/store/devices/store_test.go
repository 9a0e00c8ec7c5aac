package devices

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"gocloud.dev/docstore/memdocstore"
)

func newStores(t *testing.T) map[string]DeviceStore {
	coll, err := memdocstore.OpenCollection(keyField, nil)
	require.NoError(t, err)
	t.Cleanup(func() { coll.Close() })

	db, err := bolt.Open(filepath.Join(t.TempDir(), "devices.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	local, err := NewDeviceLocalStore(db)
	require.NoError(t, err)

	return map[string]DeviceStore{
		"docstore": NewDeviceDocStore(coll),
		"local":    local,
	}
}

func TestDeviceStores(t *testing.T) {
	ctx := context.Background()
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			cfg, err := store.GetConfig(ctx, "esp-1")
			require.NoError(t, err)
			assert.Nil(t, cfg)

			exists, err := store.Exists(ctx, "esp-1")
			require.NoError(t, err)
			assert.False(t, exists)

			require.NoError(t, store.CreateDevice(ctx, "esp-1", nil))

			exists, err = store.Exists(ctx, "esp-1")
			require.NoError(t, err)
			assert.True(t, exists)

			cfg, err = store.GetConfig(ctx, "esp-1")
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, "esp-1", cfg.DeviceID)
			require.NotNil(t, cfg.Weather.HourThreshold)
			assert.Equal(t, 20, *cfg.Weather.HourThreshold)
			assert.Equal(t, []int{9, 12, 18}, cfg.Weather.HoursToForecast)

			err = store.UpdateConfig(ctx, "esp-1", map[string]interface{}{
				"weather.hourThreshold": 21,
				"departures": map[string]interface{}{
					"userLines": []interface{}{"U8", "M43"},
				},
				"location": map[string]interface{}{"zipCode": "10249"},
			})
			require.NoError(t, err)

			cfg, err = store.GetConfig(ctx, "esp-1")
			require.NoError(t, err)
			assert.Equal(t, 21, *cfg.Weather.HourThreshold)
			assert.Equal(t, []int{9, 12, 18}, cfg.Weather.HoursToForecast)
			assert.Equal(t, []string{"U8", "M43"}, cfg.Departures.UserLines)
			assert.Equal(t, "10249", cfg.Location.ZipCode)
			assert.True(t, cfg.DeviceConfiguration.Features.Weather)
			assert.NotNil(t, cfg.Updated)
		})
	}
}

func TestUpdateConfigUpserts(t *testing.T) {
	ctx := context.Background()
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.UpdateConfig(ctx, "new-device", map[string]interface{}{
				"offers.searchKeywords": []interface{}{"chips"},
			})
			require.NoError(t, err)

			cfg, err := store.GetConfig(ctx, "new-device")
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, "new-device", cfg.DeviceID)
			assert.Equal(t, []string{"chips"}, cfg.Offers.SearchKeywords)

			ids, err := store.ListDevices(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"new-device"}, ids)
		})
	}
}

func TestMergeDocument(t *testing.T) {
	doc := map[string]interface{}{
		"deviceId": "a",
		"weather": map[string]interface{}{
			"hourThreshold":   20.0,
			"hoursToForecast": []interface{}{9.0, 12.0},
		},
		"departures": map[string]interface{}{
			"stops": []interface{}{map[string]interface{}{"id": "900100003"}},
		},
	}

	merged, err := mergeDocument(doc, map[string]interface{}{
		"weather.hoursToForecast": []interface{}{7.0},
		"departures":              "reset",
	})
	require.NoError(t, err)

	weather := merged["weather"].(map[string]interface{})
	assert.Equal(t, 20.0, weather["hourThreshold"])
	assert.Equal(t, []interface{}{7.0}, weather["hoursToForecast"])
	assert.Equal(t, "reset", merged["departures"])
	assert.Equal(t, "a", merged["deviceId"])
}
