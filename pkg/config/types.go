package config

import "time"

type PlatformConfig struct {
	StorageConfig   StorageConfig   `yaml:"storage"`
	CacheConfig     CacheConfig     `yaml:"cache"`
	TTLConfig       TTLConfig       `yaml:"ttl"`
	FeedsConfig     FeedsConfig     `yaml:"feeds"`
	APIServerConfig APIServerConfig `yaml:"api"`
	GatewayConfigs  []GatewayConfig `yaml:"gateways"`
	MetricsConfig   MetricsConfig   `yaml:"metrics"`
	GeoConfig       GeoConfig       `yaml:"geo"`
	LogConfig       LogConfig       `yaml:"log"`
	Timezone        string          `yaml:"timezone"`
}

// StorageConfig points at the document store collections. When LocalPath is
// set, devices and quotes are kept in a bbolt file instead.
type StorageConfig struct {
	DevicesURL     string `yaml:"devicesURL"`
	QuotesURL      string `yaml:"quotesURL"`
	HistoryURL     string `yaml:"historyURL"`
	MongoServerURL string `yaml:"mongoServerURL"`
	LocalPath      string `yaml:"localPath"`
}

type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	Redis           RedisConfig   `yaml:"redis"`
	BoltPath        string        `yaml:"boltPath"`
	DocstoreURL     string        `yaml:"docstoreURL"`
	SweepInterval   time.Duration `yaml:"sweepInterval"`
	FallbackSize    int           `yaml:"fallbackSize"`
	UpstreamTimeout time.Duration `yaml:"upstreamTimeout"`
	SkipCache       bool          `yaml:"skipCache"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	UseTLS   bool   `yaml:"useTLS"`
}

type TTLConfig struct {
	Config         time.Duration `yaml:"config"`
	ConfigNotFound time.Duration `yaml:"configNotFound"`
	Registration   time.Duration `yaml:"registration"`
	Departures     time.Duration `yaml:"departures"`
	Offers         time.Duration `yaml:"offers"`
	OfferKeys      time.Duration `yaml:"offerKeys"`
	Weather        time.Duration `yaml:"weather"`
	News           time.Duration `yaml:"news"`
	Quote          time.Duration `yaml:"quote"`
	QuoteFallback  time.Duration `yaml:"quoteFallback"`
	QuoteBatch     time.Duration `yaml:"quoteBatch"`
}

type FeedsConfig struct {
	Transit TransitConfig `yaml:"transit"`
	Offers  OffersConfig  `yaml:"offers"`
	Weather WeatherConfig `yaml:"weather"`
	Quotes  QuotesConfig  `yaml:"quotes"`
	News    NewsConfig    `yaml:"news"`
}

type TransitConfig struct {
	BaseURL  string `yaml:"baseURL"`
	Duration int    `yaml:"duration"`
}

type OffersConfig struct {
	BaseURL        string `yaml:"baseURL"`
	APIURL         string `yaml:"apiURL"`
	DefaultZipCode string `yaml:"defaultZipCode"`
	Limit          int    `yaml:"limit"`
}

type WeatherConfig struct {
	BaseURL      string `yaml:"baseURL"`
	ForecastDays int    `yaml:"forecastDays"`
}

type QuotesConfig struct {
	URL       string `yaml:"url"`
	MaxLength int    `yaml:"maxLength"`
}

type NewsConfig struct {
	BaseURL   string   `yaml:"baseURL"`
	APIKey    string   `yaml:"apiKey"`
	Languages []string `yaml:"languages"`
	PageSize  int      `yaml:"pageSize"`
}

type APIServerConfig struct {
	Port int `yaml:"port"`
}

type GatewayConfig struct {
	Protocol string `yaml:"protocol"`
	Port     int    `yaml:"port"`
	SslPort  int    `yaml:"sslPort,omitempty"`
	CertDir  string `yaml:"certDir,omitempty"`
}

type MetricsConfig struct {
	Port      int    `yaml:"port"`
	Namespace string `yaml:"namespace"`
}

type GeoConfig struct {
	ZipCodesCSV string `yaml:"zipCodesCSV"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}
