// Package weather reduces an hourly forecast to the configured hours of the
// relevant day and classifies each sample for cycling.
package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"com.aviebrantz.feedhub/pkg/clock"
	"com.aviebrantz.feedhub/pkg/core/store/devices"
	"com.aviebrantz.feedhub/pkg/geo"
)

const (
	DefaultHourThreshold = 20
	knotInKmh            = 1.852
	dateLayout           = "2006-01-02"
)

var DefaultHoursToForecast = []int{9, 12, 18}

var ErrMissingCoordinates = errors.New("location coordinates missing in configuration")

type Sample struct {
	Time                     string   `json:"time"`
	Hour                     int      `json:"hour"`
	Date                     string   `json:"date"`
	Temperature              *float64 `json:"temperature"`
	WindDirection            *float64 `json:"windDirection"`
	WindSpeed                *float64 `json:"windSpeed"`
	WeatherCode              *int     `json:"weatherCode"`
	Precipitation            *float64 `json:"precipitation"`
	PrecipitationProbability *float64 `json:"precipitationProbability"`
	Humidity                 *float64 `json:"humidity"`
	ApparentTemperature      *float64 `json:"apparentTemperature"`

	WindSpeedKnots *float64 `json:"windSpeedKnots"`
	IsBikeWeather  bool     `json:"isBikeWeather"`
}

type Report struct {
	Current     Sample   `json:"current"`
	DayForecast []Sample `json:"dayForecast"`
}

type ZipLookup interface {
	Lookup(zip string) (geo.Coordinates, bool)
}

type Normalizer struct {
	fetcher      Fetcher
	zips         ZipLookup
	clock        clock.Clock
	forecastDays int
	logger       *log.Entry
}

func NewNormalizer(fetcher Fetcher, zips ZipLookup, clk clock.Clock, forecastDays int) *Normalizer {
	if forecastDays <= 0 {
		forecastDays = 2
	}
	return &Normalizer{
		fetcher:      fetcher,
		zips:         zips,
		clock:        clk,
		forecastDays: forecastDays,
		logger:       log.WithField("module", "weather"),
	}
}

func (n *Normalizer) coordinates(loc devices.Location) (geo.Coordinates, error) {
	if loc.Latitude != nil && loc.Longitude != nil {
		return geo.Coordinates{Latitude: *loc.Latitude, Longitude: *loc.Longitude}, nil
	}
	if loc.ZipCode != "" && n.zips != nil {
		if c, ok := n.zips.Lookup(loc.ZipCode); ok {
			return c, nil
		}
	}
	return geo.Coordinates{}, ErrMissingCoordinates
}

// TargetDate is tomorrow once now has reached the threshold hour, else today.
func TargetDate(now time.Time, threshold int) string {
	if now.Hour() >= threshold {
		now = now.AddDate(0, 0, 1)
	}
	return now.Format(dateLayout)
}

func (n *Normalizer) GetWeather(ctx context.Context, cfg *devices.DeviceConfig) (*Report, error) {
	coords, err := n.coordinates(cfg.Location)
	if err != nil {
		return nil, err
	}

	hours := cfg.Weather.HoursToForecast
	if len(hours) == 0 {
		hours = DefaultHoursToForecast
	}
	threshold := DefaultHourThreshold
	if cfg.Weather.HourThreshold != nil {
		threshold = *cfg.Weather.HourThreshold
	}

	now := n.clock.Now()
	target := TargetDate(now, threshold)

	raw, err := n.fetcher.Forecast(ctx, ForecastRequest{
		Latitude:     coords.Latitude,
		Longitude:    coords.Longitude,
		ForecastDays: n.forecastDays,
		Timezone:     now.Location().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	current := Enrich(parseCurrent(raw.Current, now))
	forecast := make([]Sample, 0, len(hours))
	for _, s := range FilterByHours(parseHourly(raw.Hourly, now.Location()), hours, target) {
		forecast = append(forecast, Enrich(s))
	}

	return &Report{Current: current, DayForecast: forecast}, nil
}

func parseCurrent(c *RawCurrent, now time.Time) Sample {
	s := Sample{
		Time: now.Format("2006-01-02T15:00"),
		Hour: now.Hour(),
		Date: now.Format(dateLayout),
	}
	if c == nil {
		return s
	}
	s.Temperature = c.Temperature
	s.WindDirection = c.WindDirection
	s.WindSpeed = c.WindSpeed
	s.WeatherCode = c.WeatherCode
	s.Precipitation = c.Precipitation
	s.PrecipitationProbability = c.PrecipitationProbability
	s.Humidity = c.Humidity
	s.ApparentTemperature = c.ApparentTemperature
	return s
}

func at[T any](values []*T, i int) *T {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func parseHourly(h *RawHourly, loc *time.Location) []Sample {
	if h == nil {
		return nil
	}
	out := make([]Sample, 0, len(h.Time))
	for i, ts := range h.Time {
		t, ok := clock.ParseTime(ts, loc)
		if !ok {
			continue
		}
		out = append(out, Sample{
			Time:                     ts,
			Hour:                     t.Hour(),
			Date:                     t.Format(dateLayout),
			Temperature:              at(h.Temperature, i),
			WindDirection:            at(h.WindDirection, i),
			WindSpeed:                at(h.WindSpeed, i),
			WeatherCode:              at(h.WeatherCode, i),
			Precipitation:            at(h.Precipitation, i),
			PrecipitationProbability: at(h.PrecipitationProbability, i),
			Humidity:                 at(h.Humidity, i),
			ApparentTemperature:      at(h.ApparentTemperature, i),
		})
	}
	return out
}

// FilterByHours keeps samples on date whose hour is listed.
func FilterByHours(samples []Sample, hours []int, date string) []Sample {
	wanted := make(map[int]bool, len(hours))
	for _, h := range hours {
		wanted[h] = true
	}
	out := make([]Sample, 0, len(hours))
	for _, s := range samples {
		if wanted[s.Hour] && s.Date == date {
			out = append(out, s)
		}
	}
	return out
}

// Enrich derives knots and the cycling verdict. Absent inputs leave knots nil
// and the verdict false.
func Enrich(s Sample) Sample {
	if s.WindSpeed != nil {
		knots := *s.WindSpeed / knotInKmh
		s.WindSpeedKnots = &knots
	}
	s.IsBikeWeather = IsBikeWeather(s.ApparentTemperature, s.WindSpeed, s.PrecipitationProbability)
	return s
}

func IsBikeWeather(apparent, windSpeed, precipProb *float64) bool {
	if apparent == nil || windSpeed == nil || precipProb == nil {
		return false
	}
	return *apparent >= 10 && *apparent <= 28 && *windSpeed < 30 && *precipProb < 10
}
