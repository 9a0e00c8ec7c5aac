package api

import (
	"strconv"

	"github.com/apex/log"
	"github.com/gofiber/fiber"

	"com.aviebrantz.feedhub/pkg/config"
	"com.aviebrantz.feedhub/pkg/core/store/history"
	"com.aviebrantz.feedhub/pkg/feeds"
	"com.aviebrantz.feedhub/pkg/geo"
)

type ApiServer struct {
	feeds   *feeds.Service
	zips    *geo.ZipCodes
	history history.UpdateHistoryStore
	config  config.APIServerConfig
	logger  *log.Entry
}

func NewServer(
	feedService *feeds.Service,
	zips *geo.ZipCodes,
	historyStore history.UpdateHistoryStore,
	config config.APIServerConfig,
) *ApiServer {
	return &ApiServer{
		feeds:   feedService,
		zips:    zips,
		history: historyStore,
		config:  config,
		logger:  log.WithField("module", "api"),
	}
}

// App builds the HTTP routes.
func (as *ApiServer) App() *fiber.App {
	app := fiber.New()

	for _, prefix := range []string{"/api", "/api/:deviceId"} {
		app.Get(prefix+"/config", as.requireConfig, as.getConfig)
		app.Get(prefix+"/departures", as.requireConfig, as.getDepartures)
		app.Get(prefix+"/offers", as.requireConfig, as.getOffers)
		app.Get(prefix+"/weather", as.requireConfig, as.getWeather)
		app.Get(prefix+"/quote", as.requireRegistered, as.getQuote)
		app.Get(prefix+"/news", as.requireConfig, as.getNews)
		app.Patch(prefix+"/config", as.requireRegistered, as.patchConfig)
		app.Get(prefix+"/config/history", as.requireRegistered, as.getConfigHistory)
	}
	app.Get("/api/devices", as.listDevices)
	app.Post("/api/devices/:deviceId", as.registerDevice)
	app.Get("/api/debug/cache", as.getCacheHealth)

	app.Get("/utils/zipCode/:zipCode", as.getZipCode)
	app.Get("/utils/zipCode/:zipCode/valid", as.getZipCodeValid)

	return app
}

func (as *ApiServer) Start() {
	app := as.App()
	as.logger.Infof("Starting API on port %d", as.config.Port)
	if err := app.Listen(":" + strconv.Itoa(as.config.Port)); err != nil {
		as.logger.Fatalf("Error starting api server: %v", err)
	}
}
