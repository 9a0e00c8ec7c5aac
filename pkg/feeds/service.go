// Package feeds is the entry point for device facing feed data. Every
// operation runs through the result cache with a feed specific key and TTL.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"com.aviebrantz.feedhub/pkg/cache"
	"com.aviebrantz.feedhub/pkg/clock"
	"com.aviebrantz.feedhub/pkg/core/store/devices"
	"com.aviebrantz.feedhub/pkg/devicecfg"
	"com.aviebrantz.feedhub/pkg/feeds/news"
	"com.aviebrantz.feedhub/pkg/feeds/offers"
	"com.aviebrantz.feedhub/pkg/feeds/quotes"
	"com.aviebrantz.feedhub/pkg/feeds/transit"
	"com.aviebrantz.feedhub/pkg/feeds/weather"
)

const (
	FeedConfig     = "config"
	FeedDepartures = "departures"
	FeedOffers     = "offers"
	FeedWeather    = "weather"
	FeedQuote      = "quote"
	FeedNews       = "news"
)

var ErrUnknownFeed = errors.New("unknown feed")

type TTLs struct {
	Departures    time.Duration
	Offers        time.Duration
	Weather       time.Duration
	News          time.Duration
	Quote         time.Duration
	QuoteFallback time.Duration
}

type QuoteOfTheDay struct {
	Quote  string        `json:"quote"`
	Author string        `json:"author"`
	Source quotes.Source `json:"source"`
}

type Service struct {
	cache   *cache.Store
	configs *devicecfg.Loader
	transit *transit.Normalizer
	offers  *offers.Aggregator
	weather *weather.Normalizer
	news    *news.Normalizer
	quotes  *quotes.Rotator
	clock   clock.Clock
	ttl     TTLs
	logger  *log.Entry
}

type Deps struct {
	Cache   *cache.Store
	Configs *devicecfg.Loader
	Transit *transit.Normalizer
	Offers  *offers.Aggregator
	Weather *weather.Normalizer
	News    *news.Normalizer
	Quotes  *quotes.Rotator
	Clock   clock.Clock
}

func NewService(deps Deps, ttl TTLs) *Service {
	return &Service{
		cache:   deps.Cache,
		configs: deps.Configs,
		transit: deps.Transit,
		offers:  deps.Offers,
		weather: deps.Weather,
		news:    deps.News,
		quotes:  deps.Quotes,
		clock:   deps.Clock,
		ttl:     ttl,
		logger:  log.WithField("module", "feeds"),
	}
}

func (s *Service) LoadConfig(ctx context.Context, deviceID string) (*devices.DeviceConfig, error) {
	return s.configs.LoadConfig(ctx, deviceID)
}

func (s *Service) IsRegistered(ctx context.Context, deviceID string) (bool, error) {
	return s.configs.IsRegistered(ctx, deviceID)
}

func (s *Service) UpdateConfig(ctx context.Context, deviceID string, updates map[string]interface{}) error {
	return s.configs.UpdateConfig(ctx, deviceID, updates)
}

func (s *Service) Register(ctx context.Context, deviceID string) (*devices.DeviceConfig, error) {
	return s.configs.Register(ctx, deviceID)
}

func (s *Service) ListDevices(ctx context.Context) ([]string, error) {
	return s.configs.ListDevices(ctx)
}

func (s *Service) InvalidateDeviceCache(ctx context.Context, deviceID string) error {
	return s.configs.InvalidateDeviceCache(ctx, deviceID)
}

func (s *Service) CacheHealthy(ctx context.Context) bool {
	return s.cache.Healthy(ctx)
}

func DeparturesKey(deviceID string, stops []transit.Stop, userLines []string) string {
	return cache.DeviceKey(FeedDepartures, deviceID, stops, userLines)
}

func OffersKey(cfg *devices.DeviceConfig) string {
	return cache.DeviceKey(FeedOffers, cfg.DeviceID, cfg)
}

func WeatherKey(cfg *devices.DeviceConfig) string {
	return cache.DeviceKey(FeedWeather, cfg.DeviceID, cfg.Location, cfg.Weather)
}

func NewsKey(cfg *devices.DeviceConfig) string {
	return cache.DeviceKey(FeedNews, cfg.DeviceID, cfg.NewsOfTheDay)
}

func QuoteKey(now time.Time) string {
	return cache.Key(FeedQuote, now.Format("2006-01-02"))
}

func (s *Service) GetAllDepartures(ctx context.Context, deviceID string, stops []transit.Stop, userLines []string) ([]transit.Departure, error) {
	return cache.GetOrCompute(ctx, s.cache, DeparturesKey(deviceID, stops, userLines), s.ttl.Departures,
		func(ctx context.Context) ([]transit.Departure, error) {
			return s.transit.GetAllDepartures(ctx, stops, userLines)
		})
}

// DeparturesForConfig runs GetAllDepartures for the stops and lines of cfg.
func (s *Service) DeparturesForConfig(ctx context.Context, cfg *devices.DeviceConfig) ([]transit.Departure, error) {
	stops := make([]transit.Stop, 0, len(cfg.Departures.Stops))
	for _, st := range cfg.Departures.Stops {
		stops = append(stops, transit.Stop{ID: st.ID, Name: st.Name, Lines: st.Lines})
	}
	return s.GetAllDepartures(ctx, cfg.DeviceID, stops, cfg.Departures.UserLines)
}

func (s *Service) GetOffersFromConfig(ctx context.Context, cfg *devices.DeviceConfig) (offers.Groups, error) {
	return cache.GetOrCompute(ctx, s.cache, OffersKey(cfg), s.ttl.Offers,
		func(ctx context.Context) (offers.Groups, error) {
			return s.offers.GetOffers(ctx, cfg)
		})
}

func (s *Service) GetWeatherData(ctx context.Context, cfg *devices.DeviceConfig) (*weather.Report, error) {
	return cache.GetOrCompute(ctx, s.cache, WeatherKey(cfg), s.ttl.Weather,
		func(ctx context.Context) (*weather.Report, error) {
			return s.weather.GetWeather(ctx, cfg)
		})
}

func (s *Service) GetNewsOfTheDay(ctx context.Context, cfg *devices.DeviceConfig) ([]news.Article, error) {
	return cache.GetOrCompute(ctx, s.cache, NewsKey(cfg), s.ttl.News,
		func(ctx context.Context) ([]news.Article, error) {
			return s.news.GetNews(ctx, cfg)
		})
}

// GetQuoteOfTheDay is cached until local midnight at most. The hardcoded
// fallback is only kept for the short fallback TTL so a recovered upstream
// shows up quickly.
func (s *Service) GetQuoteOfTheDay(ctx context.Context) (QuoteOfTheDay, error) {
	now := s.clock.Now()
	untilMidnight := clock.StartOfNextDay(now).Sub(now)

	policy := cache.Policy[QuoteOfTheDay]{
		TTLFunc: func(q QuoteOfTheDay) time.Duration {
			if q.Source == quotes.SourceFallback {
				return s.ttl.QuoteFallback
			}
			if s.ttl.Quote < untilMidnight {
				return s.ttl.Quote
			}
			return untilMidnight
		},
	}
	return cache.Compute(ctx, s.cache, QuoteKey(now), policy, func(ctx context.Context) (QuoteOfTheDay, error) {
		q, src := s.quotes.QuoteOfTheDay(ctx)
		return QuoteOfTheDay{Quote: q.Text, Author: q.Author, Source: src}, nil
	})
}

// Feed resolves one named feed for a loaded configuration.
func (s *Service) Feed(ctx context.Context, cfg *devices.DeviceConfig, name string) (interface{}, error) {
	switch name {
	case FeedConfig:
		return cfg.DeviceConfiguration, nil
	case FeedDepartures:
		return s.DeparturesForConfig(ctx, cfg)
	case FeedOffers:
		return s.GetOffersFromConfig(ctx, cfg)
	case FeedWeather:
		return s.GetWeatherData(ctx, cfg)
	case FeedQuote:
		return s.GetQuoteOfTheDay(ctx)
	case FeedNews:
		return s.GetNewsOfTheDay(ctx, cfg)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, name)
}
