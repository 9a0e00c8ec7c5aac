package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/stats/view"
	"gocloud.dev/docstore"
	"gocloud.dev/pubsub"

	_ "gocloud.dev/docstore/memdocstore"
	_ "gocloud.dev/docstore/mongodocstore"
	_ "gocloud.dev/pubsub/mempubsub"

	"com.aviebrantz.feedhub/pkg/api"
	"com.aviebrantz.feedhub/pkg/cache"
	"com.aviebrantz.feedhub/pkg/clock"
	"com.aviebrantz.feedhub/pkg/config"
	"com.aviebrantz.feedhub/pkg/core/store/devices"
	"com.aviebrantz.feedhub/pkg/core/store/history"
	quotestore "com.aviebrantz.feedhub/pkg/core/store/quotes"
	"com.aviebrantz.feedhub/pkg/devicecfg"
	"com.aviebrantz.feedhub/pkg/feeds"
	"com.aviebrantz.feedhub/pkg/feeds/news"
	"com.aviebrantz.feedhub/pkg/feeds/offers"
	"com.aviebrantz.feedhub/pkg/feeds/quotes"
	"com.aviebrantz.feedhub/pkg/feeds/transit"
	"com.aviebrantz.feedhub/pkg/feeds/upstream"
	"com.aviebrantz.feedhub/pkg/feeds/weather"
	"com.aviebrantz.feedhub/pkg/gateway/coap"
	"com.aviebrantz.feedhub/pkg/geo"
	"com.aviebrantz.feedhub/pkg/ingestion/configupdates"
	historyingestion "com.aviebrantz.feedhub/pkg/ingestion/history"
	"com.aviebrantz.feedhub/pkg/metrics"
)

const configUpdatesURL = "mem://configUpdates"

type stores struct {
	devices devices.DeviceStore
	quotes  quotestore.BatchStore
	history history.UpdateHistoryStore
	close   func()
}

func openCollection(ctx context.Context, url string) *docstore.Collection {
	coll, err := docstore.OpenCollection(ctx, url)
	if err != nil {
		log.Fatalf("could not open collection %s: %v", url, err)
	}
	return coll
}

func openStores(ctx context.Context, cfg config.StorageConfig) stores {
	if cfg.LocalPath != "" {
		db, err := bolt.Open(cfg.LocalPath, 0600, nil)
		if err != nil {
			log.Fatalf("could not open local store %s: %v", cfg.LocalPath, err)
		}
		deviceStore, err := devices.NewDeviceLocalStore(db)
		if err != nil {
			log.Fatalf("could not prepare devices bucket: %v", err)
		}
		quoteStore, err := quotestore.NewBatchLocalStore(db)
		if err != nil {
			log.Fatalf("could not prepare quotes bucket: %v", err)
		}
		return stores{
			devices: deviceStore,
			quotes:  quoteStore,
			history: history.NewHistoryLocalStore(db),
			close:   func() { db.Close() },
		}
	}

	if cfg.MongoServerURL != "" {
		os.Setenv("MONGO_SERVER_URL", cfg.MongoServerURL)
	}
	devicesColl := openCollection(ctx, cfg.DevicesURL)
	quotesColl := openCollection(ctx, cfg.QuotesURL)
	historyColl := openCollection(ctx, cfg.HistoryURL)
	return stores{
		devices: devices.NewDeviceDocStore(devicesColl),
		quotes:  quotestore.NewBatchDocStore(quotesColl),
		history: history.NewHistoryDocStore(historyColl),
		close: func() {
			devicesColl.Close()
			quotesColl.Close()
			historyColl.Close()
		},
	}
}

func openCacheBackend(ctx context.Context, cfg config.CacheConfig) cache.Backend {
	switch cfg.Backend {
	case config.BackendBolt:
		backend, err := cache.OpenBoltBackend(cfg.BoltPath)
		if err != nil {
			log.Fatalf("could not open bolt cache %s: %v", cfg.BoltPath, err)
		}
		return backend
	case config.BackendRedis:
		return cache.NewRedisBackend(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			UseTLS:   cfg.Redis.UseTLS,
		})
	case config.BackendDocstore:
		return cache.NewDocstoreBackend(openCollection(ctx, cfg.DocstoreURL))
	}
	return cache.NewMemoryBackend(cfg.FallbackSize)
}

func loadConfig() *config.PlatformConfig {
	cfg, err := config.LoadConfig()
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("config.yaml not found, using defaults")
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

func main() {
	log.SetHandler(text.New(os.Stderr))

	cfg := loadConfig()
	log.SetLevelFromString(cfg.LogConfig.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := clock.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}
	clk := clock.System(loc)

	st := openStores(ctx, cfg.StorageConfig)
	defer st.close()

	backend := openCacheBackend(ctx, cfg.CacheConfig)
	if sweeper, ok := backend.(cache.Sweeper); ok {
		go cache.NewJanitor(sweeper, cfg.CacheConfig.SweepInterval).Start(ctx)
	}
	cacheStore := cache.NewStore(backend,
		cache.WithFallbackSize(cfg.CacheConfig.FallbackSize),
		cache.WithSkipCache(cfg.CacheConfig.SkipCache),
	)
	defer cacheStore.Close()

	zips := geo.NewZipCodes(cfg.GeoConfig.ZipCodesCSV)
	httpClient := upstream.NewHTTPClient(cfg.CacheConfig.UpstreamTimeout)
	ttl := cfg.TTLConfig
	fc := cfg.FeedsConfig

	loader := devicecfg.NewLoader(st.devices, cacheStore, devicecfg.TTLs{
		Config:       ttl.Config,
		NotFound:     ttl.ConfigNotFound,
		Registration: ttl.Registration,
	})

	offersClient := offers.NewClient(
		offers.WithHTTPClient(httpClient),
		offers.WithBaseURL(fc.Offers.BaseURL),
		offers.WithAPIURL(fc.Offers.APIURL),
		offers.WithKeyCache(cacheStore, ttl.OfferKeys),
	)

	feedService := feeds.NewService(feeds.Deps{
		Cache:   cacheStore,
		Configs: loader,
		Transit: transit.NewNormalizer(
			transit.NewClient(transit.WithHTTPClient(httpClient), transit.WithBaseURL(fc.Transit.BaseURL)),
			clk, fc.Transit.Duration),
		Offers: offers.NewAggregator(offersClient, offersClient.BaseURL(), fc.Offers.DefaultZipCode, fc.Offers.Limit),
		Weather: weather.NewNormalizer(
			weather.NewClient(weather.WithHTTPClient(httpClient), weather.WithBaseURL(fc.Weather.BaseURL)),
			zips, clk, fc.Weather.ForecastDays),
		News: news.NewNormalizer(
			news.NewClient(news.WithHTTPClient(httpClient), news.WithBaseURL(fc.News.BaseURL), news.WithAPIKey(fc.News.APIKey)),
			fc.News.Languages, fc.News.PageSize),
		Quotes: quotes.NewRotator(
			quotes.NewClient(quotes.WithHTTPClient(httpClient), quotes.WithURL(fc.Quotes.URL)),
			st.quotes, clk, fc.Quotes.MaxLength, ttl.QuoteBatch),
		Clock: clk,
	}, feeds.TTLs{
		Departures:    ttl.Departures,
		Offers:        ttl.Offers,
		Weather:       ttl.Weather,
		News:          ttl.News,
		Quote:         ttl.Quote,
		QuoteFallback: ttl.QuoteFallback,
	})

	updateTopic, err := pubsub.OpenTopic(ctx, configUpdatesURL)
	if err != nil {
		log.Fatalf("Err creating config update topic: %v", err)
	}
	defer updateTopic.Shutdown(ctx)

	updateSub, err := pubsub.OpenSubscription(ctx, configUpdatesURL)
	if err != nil {
		log.Fatalf("could not open config update subscription: %v", err)
	}
	defer updateSub.Shutdown(ctx)

	historySub, err := pubsub.OpenSubscription(ctx, configUpdatesURL)
	if err != nil {
		log.Fatalf("could not open config history subscription: %v", err)
	}
	defer historySub.Shutdown(ctx)

	views := append([]*view.View{}, cache.Views()...)
	views = append(views, coap.Views()...)
	metrics.StartMetricsExporter(cfg.MetricsConfig, views...)

	for i := range cfg.GatewayConfigs {
		go coap.NewGateway(feedService, updateTopic, &cfg.GatewayConfigs[i]).Start()
	}
	go configupdates.NewIngestor(updateSub, loader).Start(ctx)
	go historyingestion.NewIngestor(historySub, st.history).Start(ctx)
	go api.NewServer(feedService, zips, st.history, cfg.APIServerConfig).Start()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	log.Info("Server Started")
	<-done
	log.Info("Server Stopped")
}
