package api

import (
	"errors"

	"github.com/gofiber/fiber"

	"com.aviebrantz.feedhub/pkg/feeds/weather"
)

func (as *ApiServer) getDepartures(ctx *fiber.Ctx) {
	departures, err := as.feeds.DeparturesForConfig(ctx.Context(), configOf(ctx))
	if err != nil {
		as.logger.Errorf("departures: %v", err)
		fail(ctx, fiber.StatusInternalServerError, "could not fetch departures")
		return
	}
	if len(departures) == 0 {
		ctx.Status(fiber.StatusNotFound)
		ctx.JSON(fiber.Map{"message": "no departures found"})
		return
	}
	ctx.JSON(departures)
}

func (as *ApiServer) getOffers(ctx *fiber.Ctx) {
	groups, err := as.feeds.GetOffersFromConfig(ctx.Context(), configOf(ctx))
	if err != nil {
		as.logger.Errorf("offers: %v", err)
		fail(ctx, fiber.StatusInternalServerError, "could not fetch offers")
		return
	}
	if len(groups) == 0 {
		ctx.Status(fiber.StatusNotFound)
		ctx.JSON(fiber.Map{"message": "no offers configured"})
		return
	}
	ctx.JSON(groups)
}

func (as *ApiServer) getWeather(ctx *fiber.Ctx) {
	report, err := as.feeds.GetWeatherData(ctx.Context(), configOf(ctx))
	if errors.Is(err, weather.ErrMissingCoordinates) {
		fail(ctx, fiber.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		as.logger.Errorf("weather: %v", err)
		fail(ctx, fiber.StatusInternalServerError, "could not fetch weather data")
		return
	}
	ctx.JSON(report)
}

func (as *ApiServer) getNews(ctx *fiber.Ctx) {
	articles, err := as.feeds.GetNewsOfTheDay(ctx.Context(), configOf(ctx))
	if err != nil {
		as.logger.Errorf("news: %v", err)
		fail(ctx, fiber.StatusInternalServerError, "could not fetch news")
		return
	}
	ctx.JSON(articles)
}

func (as *ApiServer) getQuote(ctx *fiber.Ctx) {
	quote, err := as.feeds.GetQuoteOfTheDay(ctx.Context())
	if err != nil {
		fail(ctx, fiber.StatusInternalServerError, err.Error())
		return
	}
	ctx.JSON(quote)
}

func (as *ApiServer) getZipCode(ctx *fiber.Ctx) {
	zip := ctx.Params("zipCode")
	if len(zip) != 5 {
		fail(ctx, fiber.StatusBadRequest, "zip code must have 5 characters")
		return
	}

	coords, ok := as.zips.Lookup(zip)
	if !ok {
		fail(ctx, fiber.StatusNotFound, "zip code not found")
		return
	}

	ctx.JSON(fiber.Map{
		"zipCode":   zip,
		"latitude":  coords.Latitude,
		"longitude": coords.Longitude,
	})
}

func (as *ApiServer) getZipCodeValid(ctx *fiber.Ctx) {
	ctx.JSON(fiber.Map{"valid": as.zips.Valid(ctx.Params("zipCode"))})
}
