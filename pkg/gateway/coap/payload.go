package coap

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fxamacker/cbor/v2"
	"github.com/nqd/flat"
	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"

	"com.aviebrantz.feedhub/pkg/core/store/devices"
	"com.aviebrantz.feedhub/pkg/devicecfg"
	"com.aviebrantz.feedhub/pkg/feeds"
)

// FeedProvider resolves device configurations and their feeds.
type FeedProvider interface {
	LoadConfig(ctx context.Context, deviceID string) (*devices.DeviceConfig, error)
	Feed(ctx context.Context, cfg *devices.DeviceConfig, name string) (interface{}, error)
}

func errorPayload(msg string) []byte {
	data, _ := cbor.Marshal(map[string]string{"error": msg})
	return data
}

// feedPayload returns the response code and CBOR body for one feed request.
func feedPayload(ctx context.Context, provider FeedProvider, deviceID, feed string) (codes.Code, []byte) {
	cfg, err := provider.LoadConfig(ctx, deviceID)
	if errors.Is(err, devicecfg.ErrConfigNotFound) {
		return codes.Forbidden, errorPayload(err.Error())
	}
	if err != nil {
		return codes.InternalServerError, errorPayload("could not load device configuration")
	}

	value, err := provider.Feed(ctx, cfg, feed)
	if errors.Is(err, feeds.ErrUnknownFeed) {
		return codes.NotFound, errorPayload(err.Error())
	}
	if err != nil {
		return codes.InternalServerError, errorPayload(err.Error())
	}

	data, err := cbor.Marshal(value)
	if err != nil {
		return codes.InternalServerError, errorPayload("could not encode feed")
	}
	return codes.Content, data
}

// configUpdate turns a posted body into the nested update document. The
// subpath places the value below a/b/c in the configuration.
func configUpdate(subpath string, format message.MediaType, data []byte) ([]byte, error) {
	parsed := make(map[string]interface{})

	if format == message.AppCBOR {
		var v interface{}
		if err := cbor.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		if subpath != "" {
			parsed[subpath] = normalizeCBOR(v)
		} else if m, ok := normalizeCBOR(v).(map[string]interface{}); ok {
			parsed = m
		} else {
			return nil, errors.New("cbor body without subpath must be a map")
		}
	} else {
		if subpath == "" {
			return nil, errors.New("text body needs a subpath")
		}
		parsed[subpath] = string(data)
	}

	if len(parsed) == 0 {
		return nil, errors.New("empty update")
	}

	full, err := flat.Unflatten(parsed, &flat.Options{Delimiter: "/"})
	if err != nil {
		return nil, err
	}
	return json.Marshal(full)
}

// normalizeCBOR converts the map[interface{}]interface{} values cbor decodes
// into string keyed maps.
func normalizeCBOR(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			if s, ok := k.(string); ok {
				m[s] = normalizeCBOR(val)
			}
		}
		return m
	case []interface{}:
		for i := range t {
			t[i] = normalizeCBOR(t[i])
		}
		return t
	}
	return v
}
