package quotes

import (
	"context"
	"net/http"

	"com.aviebrantz.feedhub/pkg/feeds/upstream"
)

const DefaultURL = "https://zenquotes.io/api/quotes"

// RawQuote is one entry of a zenquotes style response.
type RawQuote struct {
	Q string `json:"q"`
	A string `json:"a"`
}

type Fetcher interface {
	Quotes(ctx context.Context) ([]RawQuote, error)
}

type Client struct {
	http *http.Client
	url  string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithURL(raw string) Option {
	return func(c *Client) {
		if raw != "" {
			c.url = raw
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http: upstream.NewHTTPClient(upstream.DefaultTimeout),
		url:  DefaultURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Quotes(ctx context.Context) ([]RawQuote, error) {
	var res []RawQuote
	if err := upstream.GetJSON(ctx, c.http, c.url, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}
