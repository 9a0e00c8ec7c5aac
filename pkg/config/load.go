package config

import (
	"fmt"
	"io/ioutil"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendRedis    = "redis"
	BackendDocstore = "docstore"
)

func LoadConfig() (*PlatformConfig, error) {
	return LoadConfigFromFile("./config.yaml")
}

func LoadConfigFromFile(filename string) (*PlatformConfig, error) {
	content, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

// Parse decodes a yaml document, applies defaults and validates the result.
func Parse(content []byte) (*PlatformConfig, error) {
	config := PlatformConfig{}
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, err
	}

	config.Defaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Defaults fills every unset value.
func (c *PlatformConfig) Defaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}

	s := &c.StorageConfig
	if s.DevicesURL == "" {
		s.DevicesURL = "mem://deviceConfigurations/deviceId"
	}
	if s.QuotesURL == "" {
		s.QuotesURL = "mem://quotes/id"
	}
	if s.HistoryURL == "" {
		s.HistoryURL = "mem://configHistory/id"
	}

	cc := &c.CacheConfig
	if cc.Backend == "" {
		cc.Backend = BackendMemory
	}
	if cc.BoltPath == "" {
		cc.BoltPath = "./cache.db"
	}
	if cc.DocstoreURL == "" {
		cc.DocstoreURL = "mem://cache/key"
	}
	if cc.SweepInterval == 0 {
		cc.SweepInterval = time.Minute
	}
	if cc.FallbackSize == 0 {
		cc.FallbackSize = 1000
	}
	if cc.UpstreamTimeout == 0 {
		cc.UpstreamTimeout = 5 * time.Second
	}
	if cc.Redis.Addr == "" {
		cc.Redis.Addr = "localhost:6379"
	}

	t := &c.TTLConfig
	setDuration(&t.Config, 10*time.Minute)
	setDuration(&t.ConfigNotFound, time.Minute)
	setDuration(&t.Registration, 5*time.Minute)
	setDuration(&t.Departures, 30*time.Second)
	setDuration(&t.Offers, 6000*time.Second)
	setDuration(&t.OfferKeys, time.Hour)
	setDuration(&t.Weather, time.Hour)
	setDuration(&t.News, time.Hour)
	setDuration(&t.Quote, 24*time.Hour)
	setDuration(&t.QuoteFallback, 5*time.Minute)
	setDuration(&t.QuoteBatch, 24*time.Hour)

	f := &c.FeedsConfig
	if f.Transit.BaseURL == "" {
		f.Transit.BaseURL = "https://v6.vbb.transport.rest"
	}
	if f.Transit.Duration == 0 {
		f.Transit.Duration = 10
	}
	if f.Offers.BaseURL == "" {
		f.Offers.BaseURL = "http://marktguru.de"
	}
	if f.Offers.APIURL == "" {
		f.Offers.APIURL = "https://api.marktguru.de/api/v1"
	}
	if f.Offers.DefaultZipCode == "" {
		f.Offers.DefaultZipCode = "60487"
	}
	if f.Offers.Limit == 0 {
		f.Offers.Limit = 1000
	}
	if f.Weather.BaseURL == "" {
		f.Weather.BaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if f.Weather.ForecastDays == 0 {
		f.Weather.ForecastDays = 2
	}
	if f.News.BaseURL == "" {
		f.News.BaseURL = "https://newsdata.io/api/1/latest"
	}
	if len(f.News.Languages) == 0 {
		f.News.Languages = []string{"de", "en"}
	}
	if f.News.PageSize == 0 {
		f.News.PageSize = 5
	}
	if f.Quotes.URL == "" {
		f.Quotes.URL = "https://zenquotes.io/api/quotes"
	}
	if f.Quotes.MaxLength == 0 {
		f.Quotes.MaxLength = 72
	}

	if c.APIServerConfig.Port == 0 {
		c.APIServerConfig.Port = 3000
	}
	if c.MetricsConfig.Port == 0 {
		c.MetricsConfig.Port = 8888
	}
	if c.MetricsConfig.Namespace == "" {
		c.MetricsConfig.Namespace = "feedhub"
	}
	if c.GeoConfig.ZipCodesCSV == "" {
		c.GeoConfig.ZipCodesCSV = "./public/zip_code_to_lat_long.csv"
	}
}

// Validate rejects configurations the server cannot start with.
func (c *PlatformConfig) Validate() error {
	switch c.CacheConfig.Backend {
	case BackendMemory, BackendBolt, BackendRedis, BackendDocstore:
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheConfig.Backend)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if c.TTLConfig.ConfigNotFound > c.TTLConfig.Config {
		return fmt.Errorf("ttl.configNotFound (%v) must not exceed ttl.config (%v)",
			c.TTLConfig.ConfigNotFound, c.TTLConfig.Config)
	}

	for _, gw := range c.GatewayConfigs {
		if gw.Protocol != "coap" {
			return fmt.Errorf("unsupported gateway protocol %q", gw.Protocol)
		}
	}
	return nil
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
