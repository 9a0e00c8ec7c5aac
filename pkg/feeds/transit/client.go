package transit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"com.aviebrantz.feedhub/pkg/feeds/upstream"
)

const DefaultBaseURL = "https://v6.vbb.transport.rest"

type RawLine struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RawDestination struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawDeparture is one departure as reported by a HAFAS REST endpoint.
type RawDeparture struct {
	Line        *RawLine        `json:"line"`
	Destination *RawDestination `json:"destination"`
	When        string          `json:"when"`
	PlannedWhen string          `json:"plannedWhen"`
}

type Fetcher interface {
	Departures(ctx context.Context, stopID string, when time.Time, duration int) ([]RawDeparture, error)
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

type departuresResponse struct {
	Departures []RawDeparture `json:"departures"`
}

func (c *Client) Departures(ctx context.Context, stopID string, when time.Time, duration int) ([]RawDeparture, error) {
	q := url.Values{}
	q.Set("duration", strconv.Itoa(duration))
	if !when.IsZero() {
		q.Set("when", when.Format(time.RFC3339))
	}
	u, err := upstream.BuildURL(c.baseURL, "stops/"+url.PathEscape(stopID)+"/departures", q)
	if err != nil {
		return nil, err
	}

	var res departuresResponse
	if err := upstream.GetJSON(ctx, c.http, u, nil, &res); err != nil {
		return nil, err
	}
	return res.Departures, nil
}
