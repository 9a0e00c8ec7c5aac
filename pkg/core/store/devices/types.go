package devices

import (
	"context"
	"encoding/json"
	"time"
)

type DeviceStore interface {
	// GetConfig returns nil, nil when the device has no configuration.
	GetConfig(ctx context.Context, id string) (*DeviceConfig, error)
	Exists(ctx context.Context, id string) (bool, error)
	CreateDevice(ctx context.Context, id string, cfg *DeviceConfig) error
	// UpdateConfig applies nested or dotted updates, creating the device
	// when it does not exist yet.
	UpdateConfig(ctx context.Context, id string, updates map[string]interface{}) error
	ListDevices(ctx context.Context) ([]string, error)
}

type DeviceConfig struct {
	DeviceID            string              `json:"deviceId"`
	Location            Location            `json:"location"`
	Weather             WeatherSettings     `json:"weather"`
	Departures          DepartureSettings   `json:"departures"`
	Offers              OfferSettings       `json:"offers"`
	QuoteOfTheDay       QuoteSettings       `json:"quoteOfTheDay"`
	NewsOfTheDay        NewsSettings        `json:"newsOfTheDay"`
	DeviceConfiguration DeviceConfiguration `json:"deviceConfiguration"`
	Created             *time.Time          `json:"created,omitempty"`
	Updated             *time.Time          `json:"updated,omitempty"`
}

type Location struct {
	ZipCode   string   `json:"zipCode,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type WeatherSettings struct {
	HourThreshold   *int  `json:"hourThreshold,omitempty"`
	HoursToForecast []int `json:"hoursToForecast,omitempty"`
}

type Stop struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

type DepartureSettings struct {
	Stops     []Stop   `json:"stops,omitempty"`
	UserLines []string `json:"userLines,omitempty"`
}

type OfferSettings struct {
	Retailers      []string `json:"retailers,omitempty"`
	SearchKeywords []string `json:"searchKeywords,omitempty"`
	ZipCode        string   `json:"zipCode,omitempty"`
}

type QuoteSettings struct {
	Enabled bool `json:"enabled"`
}

type NewsSettings struct {
	Keywords  []string `json:"keywords,omitempty"`
	Languages []string `json:"languages,omitempty"`
	PageSize  int      `json:"pageSize,omitempty"`
}

type Intervals struct {
	Weather       int `json:"weather,omitempty"`
	Offers        int `json:"offers,omitempty"`
	Departures    int `json:"departures,omitempty"`
	QuoteOfTheDay int `json:"quoteOfTheDay,omitempty"`
}

type Features struct {
	Weather       bool `json:"weather"`
	Offers        bool `json:"offers"`
	Departures    bool `json:"departures"`
	QuoteOfTheDay bool `json:"quoteOfTheDay"`
}

type DeviceConfiguration struct {
	Intervals Intervals `json:"intervals"`
	Features  Features  `json:"features"`
}

// DefaultConfig is the configuration a freshly registered device starts with.
func DefaultConfig(id string) *DeviceConfig {
	threshold := 20
	return &DeviceConfig{
		DeviceID: id,
		Weather: WeatherSettings{
			HourThreshold:   &threshold,
			HoursToForecast: []int{9, 12, 18},
		},
		DeviceConfiguration: DeviceConfiguration{
			Intervals: Intervals{Weather: 10, Offers: 16, Departures: 30, QuoteOfTheDay: 20},
			Features:  Features{Weather: true, Offers: true, Departures: true, QuoteOfTheDay: true},
		},
		QuoteOfTheDay: QuoteSettings{Enabled: true},
	}
}

func configFromDocument(doc map[string]interface{}) (*DeviceConfig, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	cfg := &DeviceConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func documentFromConfig(cfg *DeviceConfig) (map[string]interface{}, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]interface{})
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
