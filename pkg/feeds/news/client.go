package news

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"com.aviebrantz.feedhub/pkg/feeds/upstream"
)

const DefaultBaseURL = "https://newsdata.io/api/1/latest"

// RawArticle is one result of a newsdata.io search.
type RawArticle struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	SourceName  string `json:"source_name"`
	PubDate     string `json:"pubDate"`
	Description string `json:"description"`
}

type SearchRequest struct {
	Keywords  []string
	Languages []string
	PageSize  int
}

type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]RawArticle, error)
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
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

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
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

type searchResponse struct {
	Status  string        `json:"status"`
	Results *[]RawArticle `json:"results"`
}

// Search queries the latest articles. Without keywords only the api key is
// sent and the provider picks the headlines.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]RawArticle, error) {
	q := url.Values{}
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	if len(req.Keywords) > 0 {
		q.Set("q", strings.Join(req.Keywords, " OR "))
		q.Set("language", strings.Join(req.Languages, ","))
		q.Set("size", strconv.Itoa(req.PageSize))
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.RawQuery = q.Encode()

	var res searchResponse
	if err := upstream.GetJSON(ctx, c.http, u.String(), nil, &res); err != nil {
		return nil, err
	}
	if res.Results == nil {
		return nil, ErrInvalidResponse
	}
	return *res.Results, nil
}
