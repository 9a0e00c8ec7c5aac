package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"com.aviebrantz.feedhub/pkg/clock"
	"com.aviebrantz.feedhub/pkg/core/store/devices"
	"com.aviebrantz.feedhub/pkg/geo"
)

func f(v float64) *float64 { return &v }

type fakeFetcher struct {
	res  *RawForecast
	err  error
	last ForecastRequest
}

func (ff *fakeFetcher) Forecast(ctx context.Context, req ForecastRequest) (*RawForecast, error) {
	ff.last = req
	return ff.res, ff.err
}

var berlin, _ = clock.LoadLocation("Europe/Berlin")

func forecast() *RawForecast {
	return &RawForecast{
		Current: &RawCurrent{
			Temperature:         f(14),
			WindSpeed:           f(18.52),
			ApparentTemperature: f(13),
		},
		Hourly: &RawHourly{
			Time: []string{
				"2024-05-01T09:00", "2024-05-01T12:00", "2024-05-01T18:00",
				"2024-05-02T09:00", "2024-05-02T12:00", "2024-05-02T18:00",
			},
			Temperature:              []*float64{f(10), f(15), f(13), f(11), f(16), f(14)},
			WindSpeed:                []*float64{f(10), f(10), f(40), f(10), nil, f(10)},
			PrecipitationProbability: []*float64{f(5), f(5), f(5), f(50), f(5), f(5)},
			ApparentTemperature:      []*float64{f(15), f(15), f(15), f(15), f(15), f(30)},
		},
	}
}

func location() devices.Location {
	return devices.Location{Latitude: f(52.52), Longitude: f(13.41)}
}

func TestIsBikeWeather(t *testing.T) {
	assert.True(t, IsBikeWeather(f(15), f(10), f(5)))
	assert.False(t, IsBikeWeather(f(30), f(10), f(5)))
	assert.False(t, IsBikeWeather(f(15), f(30), f(5)))
	assert.False(t, IsBikeWeather(f(15), f(10), f(10)))
	assert.True(t, IsBikeWeather(f(10), f(10), f(0)))
	assert.True(t, IsBikeWeather(f(28), f(10), f(0)))
	assert.False(t, IsBikeWeather(nil, f(10), f(5)))
}

func TestEnrich(t *testing.T) {
	s := Enrich(Sample{WindSpeed: f(18.52)})
	require.NotNil(t, s.WindSpeedKnots)
	assert.InDelta(t, 10.0, *s.WindSpeedKnots, 1e-9)
	assert.False(t, s.IsBikeWeather)

	s = Enrich(Sample{})
	assert.Nil(t, s.WindSpeedKnots)
}

func TestTargetDate(t *testing.T) {
	assert.Equal(t, "2024-05-01", TargetDate(time.Date(2024, 5, 1, 19, 59, 0, 0, berlin), 20))
	assert.Equal(t, "2024-05-02", TargetDate(time.Date(2024, 5, 1, 20, 0, 0, 0, berlin), 20))
	assert.Equal(t, "2025-01-01", TargetDate(time.Date(2024, 12, 31, 23, 0, 0, 0, berlin), 20))
}

func TestGetWeatherToday(t *testing.T) {
	ff := &fakeFetcher{res: forecast()}
	n := NewNormalizer(ff, nil, clock.Fixed(time.Date(2024, 5, 1, 8, 30, 0, 0, berlin)), 2)

	cfg := devices.DefaultConfig("esp-1")
	cfg.Location = location()

	r, err := n.GetWeather(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, ff.last.ForecastDays)
	assert.Equal(t, "Europe/Berlin", ff.last.Timezone)
	assert.Equal(t, 52.52, ff.last.Latitude)

	assert.Equal(t, 8, r.Current.Hour)
	assert.InDelta(t, 10.0, *r.Current.WindSpeedKnots, 1e-9)
	assert.False(t, r.Current.IsBikeWeather, "current block has no precipitation probability")

	require.Len(t, r.DayForecast, 3)
	assert.Equal(t, []int{9, 12, 18}, []int{r.DayForecast[0].Hour, r.DayForecast[1].Hour, r.DayForecast[2].Hour})
	assert.True(t, r.DayForecast[0].IsBikeWeather)
	assert.True(t, r.DayForecast[1].IsBikeWeather)
	assert.False(t, r.DayForecast[2].IsBikeWeather)
	assert.Equal(t, "2024-05-01", r.DayForecast[2].Date)
}

func TestGetWeatherTomorrowAfterThreshold(t *testing.T) {
	ff := &fakeFetcher{res: forecast()}
	n := NewNormalizer(ff, nil, clock.Fixed(time.Date(2024, 5, 1, 21, 0, 0, 0, berlin)), 2)

	cfg := devices.DefaultConfig("esp-1")
	cfg.Location = location()
	cfg.Weather.HoursToForecast = []int{12, 18}

	r, err := n.GetWeather(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, r.DayForecast, 2)
	for _, s := range r.DayForecast {
		assert.Equal(t, "2024-05-02", s.Date)
	}
	assert.Nil(t, r.DayForecast[0].WindSpeed)
	assert.Nil(t, r.DayForecast[0].WindSpeedKnots)
	assert.False(t, r.DayForecast[0].IsBikeWeather)
	assert.False(t, r.DayForecast[1].IsBikeWeather)
}

func TestGetWeatherMalformedPayload(t *testing.T) {
	ff := &fakeFetcher{res: &RawForecast{Hourly: &RawHourly{Time: []string{"2024-05-01T09:00", "garbage"}}}}
	n := NewNormalizer(ff, nil, clock.Fixed(time.Date(2024, 5, 1, 8, 0, 0, 0, berlin)), 2)

	cfg := devices.DefaultConfig("esp-1")
	cfg.Location = location()

	r, err := n.GetWeather(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, r.DayForecast, 1)
	assert.Nil(t, r.DayForecast[0].Temperature)
	assert.Nil(t, r.Current.Temperature)
}

func TestGetWeatherCoordinates(t *testing.T) {
	zips, err := geo.NewZipCodesFromReader(strings.NewReader("zipcode,lat,lng\n10249,52.5235,13.4497\n"))
	require.NoError(t, err)
	ff := &fakeFetcher{res: &RawForecast{}}
	n := NewNormalizer(ff, zips, clock.Fixed(time.Date(2024, 5, 1, 8, 0, 0, 0, berlin)), 2)

	cfg := devices.DefaultConfig("esp-1")
	_, err = n.GetWeather(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrMissingCoordinates)

	cfg.Location.ZipCode = "10249"
	_, err = n.GetWeather(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 52.5235, ff.last.Latitude)
}

func TestGetWeatherFetchError(t *testing.T) {
	ff := &fakeFetcher{err: errors.New("502")}
	n := NewNormalizer(ff, nil, clock.Fixed(time.Date(2024, 5, 1, 8, 0, 0, 0, berlin)), 2)
	cfg := devices.DefaultConfig("esp-1")
	cfg.Location = location()

	_, err := n.GetWeather(context.Background(), cfg)
	assert.Error(t, err)
}

func TestClientForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "52.52", q.Get("latitude"))
		assert.Equal(t, "2", q.Get("forecast_days"))
		assert.Equal(t, "Europe/Berlin", q.Get("timezone"))
		assert.Contains(t, q.Get("hourly"), "apparent_temperature")
		w.Write([]byte(`{"current":{"temperature_2m":12.5},"hourly":{"time":["2024-05-01T09:00"],"temperature_2m":[null]}}`))
	}))
	defer srv.Close()

	res, err := NewClient(WithBaseURL(srv.URL)).Forecast(context.Background(), ForecastRequest{
		Latitude: 52.52, Longitude: 13.41, ForecastDays: 2, Timezone: "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.Equal(t, 12.5, *res.Current.Temperature)
	require.Len(t, res.Hourly.Temperature, 1)
	assert.Nil(t, res.Hourly.Temperature[0])
}
