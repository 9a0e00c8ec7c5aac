package coap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"com.aviebrantz.feedhub/pkg/core/store/devices"
	"com.aviebrantz.feedhub/pkg/devicecfg"
	"com.aviebrantz.feedhub/pkg/feeds"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		path string
		want resource
		err  bool
	}{
		{path: "d/esp-1/f/departures", want: resource{DeviceID: "esp-1", Kind: kindFeed, Rest: "departures"}},
		{path: "/d/esp-1/c", want: resource{DeviceID: "esp-1", Kind: kindConfig}},
		{path: "d/esp-1/c/weather/hourThreshold", want: resource{DeviceID: "esp-1", Kind: kindConfig, Rest: "weather/hourThreshold"}},
		{path: "d/esp-1/s/temp", err: true},
		{path: "health", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := parsePath(tt.path)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeProvider struct {
	configs map[string]*devices.DeviceConfig
	feedErr error
}

func (p *fakeProvider) LoadConfig(ctx context.Context, deviceID string) (*devices.DeviceConfig, error) {
	cfg, ok := p.configs[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w for device %s", devicecfg.ErrConfigNotFound, deviceID)
	}
	return cfg, nil
}

func (p *fakeProvider) Feed(ctx context.Context, cfg *devices.DeviceConfig, name string) (interface{}, error) {
	if p.feedErr != nil {
		return nil, p.feedErr
	}
	if name != feeds.FeedQuote {
		return nil, fmt.Errorf("%w: %s", feeds.ErrUnknownFeed, name)
	}
	return feeds.QuoteOfTheDay{Quote: "Keep it simple.", Author: "Anon"}, nil
}

func TestFeedPayload(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{configs: map[string]*devices.DeviceConfig{"esp-1": devices.DefaultConfig("esp-1")}}

	code, body := feedPayload(ctx, provider, "esp-1", feeds.FeedQuote)
	require.Equal(t, codes.Content, code)
	var quote map[string]interface{}
	require.NoError(t, cbor.Unmarshal(body, &quote))
	assert.Equal(t, "Keep it simple.", quote["quote"])

	code, _ = feedPayload(ctx, provider, "ghost", feeds.FeedQuote)
	assert.Equal(t, codes.Forbidden, code)

	code, _ = feedPayload(ctx, provider, "esp-1", "lottery")
	assert.Equal(t, codes.NotFound, code)

	provider.feedErr = errors.New("upstream down")
	code, body = feedPayload(ctx, provider, "esp-1", feeds.FeedQuote)
	assert.Equal(t, codes.InternalServerError, code)
	var errBody map[string]string
	require.NoError(t, cbor.Unmarshal(body, &errBody))
	assert.Equal(t, "upstream down", errBody["error"])
}

func TestConfigUpdateFromText(t *testing.T) {
	body, err := configUpdate("location/zipCode", message.TextPlain, []byte("10249"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"location": {"zipCode": "10249"}}`, string(body))

	_, err = configUpdate("", message.TextPlain, []byte("10249"))
	assert.Error(t, err)
}

func TestConfigUpdateFromCBOR(t *testing.T) {
	data, err := cbor.Marshal(map[string]interface{}{
		"userLines": []string{"U8", "M43"},
	})
	require.NoError(t, err)

	body, err := configUpdate("departures", message.AppCBOR, data)
	require.NoError(t, err)

	var update map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &update))
	departures := update["departures"].(map[string]interface{})
	assert.Equal(t, []interface{}{"U8", "M43"}, departures["userLines"])

	data, err = cbor.Marshal(map[string]interface{}{"weather": map[string]interface{}{"hourThreshold": 19}})
	require.NoError(t, err)
	body, err = configUpdate("", message.AppCBOR, data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"weather": {"hourThreshold": 19}}`, string(body))

	data, err = cbor.Marshal(42)
	require.NoError(t, err)
	_, err = configUpdate("", message.AppCBOR, data)
	assert.Error(t, err)
}
