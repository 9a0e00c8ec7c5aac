package weather

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"com.aviebrantz.feedhub/pkg/feeds/upstream"
)

const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

var variables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"weather_code",
	"precipitation_probability",
	"precipitation",
	"wind_speed_10m",
	"wind_direction_10m",
	"apparent_temperature",
}

// RawHourly holds open-meteo's parallel arrays, indexed like Time.
type RawHourly struct {
	Time                     []string   `json:"time"`
	Temperature              []*float64 `json:"temperature_2m"`
	Humidity                 []*float64 `json:"relative_humidity_2m"`
	WeatherCode              []*int     `json:"weather_code"`
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
	Precipitation            []*float64 `json:"precipitation"`
	WindSpeed                []*float64 `json:"wind_speed_10m"`
	WindDirection            []*float64 `json:"wind_direction_10m"`
	ApparentTemperature      []*float64 `json:"apparent_temperature"`
}

type RawCurrent struct {
	Time                     string   `json:"time"`
	Temperature              *float64 `json:"temperature_2m"`
	Humidity                 *float64 `json:"relative_humidity_2m"`
	WeatherCode              *int     `json:"weather_code"`
	PrecipitationProbability *float64 `json:"precipitation_probability"`
	Precipitation            *float64 `json:"precipitation"`
	WindSpeed                *float64 `json:"wind_speed_10m"`
	WindDirection            *float64 `json:"wind_direction_10m"`
	ApparentTemperature      *float64 `json:"apparent_temperature"`
}

type RawForecast struct {
	Timezone string      `json:"timezone"`
	Hourly   *RawHourly  `json:"hourly"`
	Current  *RawCurrent `json:"current"`
}

type ForecastRequest struct {
	Latitude     float64
	Longitude    float64
	ForecastDays int
	Timezone     string
}

type Fetcher interface {
	Forecast(ctx context.Context, req ForecastRequest) (*RawForecast, error)
}

type Client struct {
	http    *http.Client
	baseURL string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if raw != "" {
			c.baseURL = raw
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    upstream.NewHTTPClient(upstream.DefaultTimeout),
		baseURL: DefaultBaseURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Forecast(ctx context.Context, req ForecastRequest) (*RawForecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	q.Set("hourly", strings.Join(variables, ","))
	q.Set("current", strings.Join(variables, ","))
	if req.ForecastDays > 0 {
		q.Set("forecast_days", strconv.Itoa(req.ForecastDays))
	}
	if req.Timezone != "" {
		q.Set("timezone", req.Timezone)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.RawQuery = q.Encode()

	res := &RawForecast{}
	if err := upstream.GetJSON(ctx, c.http, u.String(), nil, res); err != nil {
		return nil, err
	}
	return res, nil
}
