package offers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"com.aviebrantz.feedhub/pkg/cache"
	"com.aviebrantz.feedhub/pkg/feeds/upstream"
)

const (
	DefaultBaseURL = "http://marktguru.de"
	DefaultAPIURL  = "https://api.marktguru.de/api/v1"
	DefaultZipCode = "60487"
	DefaultLimit   = 1000

	keysCacheKey = "marktguru:keys"
)

var (
	// ErrNoKeys means the start page carried no usable api keys.
	ErrNoKeys = errors.New("marktguru keys not found")

	configScript = regexp.MustCompile(`<script\stype="application/json">([\s\S]*?)</script>`)
)

type Keys struct {
	APIKey    string `json:"apiKey"`
	ClientKey string `json:"clientKey"`
}

// offerID accepts both numeric and string ids.
type offerID string

func (id *offerID) UnmarshalJSON(b []byte) error {
	*id = offerID(strings.Trim(string(b), `"`))
	return nil
}

type RawNamed struct {
	Name string `json:"name"`
}

type RawAdvertiser struct {
	Name       string `json:"name"`
	UniqueName string `json:"uniqueName"`
}

type RawOffer struct {
	ID          offerID         `json:"id"`
	Price       *float64        `json:"price"`
	Description string          `json:"description"`
	Product     *RawNamed       `json:"product"`
	Brand       *RawNamed       `json:"brand"`
	Advertisers []RawAdvertiser `json:"advertisers"`
}

type SearchOptions struct {
	Limit            int
	Offset           int
	ZipCode          string
	AllowedRetailers []string
}

type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]RawOffer, error)
}

type Client struct {
	http    *http.Client
	baseURL string
	apiURL  string
	store   *cache.Store
	keyTTL  time.Duration
	keys    func(context.Context, struct{}) (Keys, error)
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

func WithAPIURL(raw string) Option {
	return func(c *Client) {
		if raw != "" {
			c.apiURL = raw
		}
	}
}

// WithKeyCache keeps scraped keys in store for ttl.
func WithKeyCache(store *cache.Store, ttl time.Duration) Option {
	return func(c *Client) { c.store, c.keyTTL = store, ttl }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    upstream.NewHTTPClient(upstream.DefaultTimeout),
		baseURL: DefaultBaseURL,
		apiURL:  DefaultAPIURL,
		keyTTL:  time.Hour,
	}
	for _, o := range opts {
		o(c)
	}
	c.keys = cache.Wrap(c.store, "keys", cache.Options[struct{}, Keys]{
		Prefix: "marktguru",
		TTL:    c.keyTTL,
		Key:    func(struct{}) string { return "keys" },
	}, c.fetchKeys)
	return c
}

// BaseURL is the public site offers link to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) fetchKeys(ctx context.Context, _ struct{}) (Keys, error) {
	body, err := upstream.Get(ctx, c.http, c.baseURL, nil)
	if err != nil {
		return Keys{}, fmt.Errorf("fetch marktguru start page: %w", err)
	}
	return parseKeys(body)
}

func parseKeys(page []byte) (Keys, error) {
	matches := configScript.FindAllSubmatch(page, -1)
	if len(matches) == 0 {
		return Keys{}, fmt.Errorf("%w: no config script", ErrNoKeys)
	}
	var doc struct {
		Config Keys `json:"config"`
	}
	if err := json.Unmarshal(matches[len(matches)-1][1], &doc); err != nil {
		return Keys{}, fmt.Errorf("%w: %v", ErrNoKeys, err)
	}
	if doc.Config.APIKey == "" || doc.Config.ClientKey == "" {
		return Keys{}, ErrNoKeys
	}
	return doc.Config, nil
}

type searchResponse struct {
	Results []RawOffer `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]RawOffer, error) {
	offers, err := c.search(ctx, query, opts)
	var status *upstream.StatusError
	if errors.As(err, &status) && (status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden) && c.store != nil {
		// keys rotated upstream
		if err := c.store.Invalidate(ctx, keysCacheKey); err != nil {
			return nil, err
		}
		offers, err = c.search(ctx, query, opts)
	}
	if err != nil {
		return nil, err
	}
	return filterRetailers(offers, opts.AllowedRetailers), nil
}

func (c *Client) search(ctx context.Context, query string, opts SearchOptions) ([]RawOffer, error) {
	keys, err := c.keys(ctx, struct{}{})
	if err != nil {
		return nil, err
	}

	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.ZipCode == "" {
		opts.ZipCode = DefaultZipCode
	}
	q := url.Values{}
	q.Set("as", "web")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(opts.Limit))
	q.Set("offset", strconv.Itoa(opts.Offset))
	q.Set("zipCode", opts.ZipCode)

	u, err := upstream.BuildURL(c.apiURL, "offers/search/", q)
	if err != nil {
		return nil, err
	}

	var res searchResponse
	err = upstream.GetJSON(ctx, c.http, u, map[string]string{
		"x-apikey":    keys.APIKey,
		"x-clientkey": keys.ClientKey,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

func filterRetailers(offers []RawOffer, allowed []string) []RawOffer {
	if len(allowed) == 0 {
		return offers
	}
	out := make([]RawOffer, 0, len(offers))
	for _, o := range offers {
		for _, ad := range o.Advertisers {
			if contains(allowed, ad.UniqueName) {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
