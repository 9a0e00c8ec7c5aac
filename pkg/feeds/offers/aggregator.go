// Package offers searches offer keywords for a device and condenses the
// results into the cheapest product per retailer.
package offers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"com.aviebrantz.feedhub/pkg/core/store/devices"
)

const unknown = "Unknown"

type Offer struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Retailer    string  `json:"retailer"`
	Description string  `json:"description"`
	Keyword     string  `json:"keyword"`
	URL         string  `json:"url"`
}

// Groups maps a short retailer key to its offers.
type Groups map[string][]Offer

type Aggregator struct {
	searcher   Searcher
	siteURL    string
	defaultZip string
	limit      int
	logger     *log.Entry
}

func NewAggregator(searcher Searcher, siteURL, defaultZip string, limit int) *Aggregator {
	if defaultZip == "" {
		defaultZip = DefaultZipCode
	}
	return &Aggregator{
		searcher:   searcher,
		siteURL:    strings.TrimRight(siteURL, "/"),
		defaultZip: defaultZip,
		limit:      limit,
		logger:     log.WithField("module", "offers"),
	}
}

// GetOffers searches every configured keyword. A failing search fails the
// whole call so nothing partial gets cached.
func (a *Aggregator) GetOffers(ctx context.Context, cfg *devices.DeviceConfig) (Groups, error) {
	keywords := cfg.Offers.SearchKeywords
	if len(keywords) == 0 {
		return Groups{}, nil
	}

	opts := SearchOptions{
		Limit:            a.limit,
		ZipCode:          a.zipCode(cfg),
		AllowedRetailers: cfg.Offers.Retailers,
	}

	results := make([][]Offer, len(keywords))
	g, gctx := errgroup.WithContext(ctx)
	for i, keyword := range keywords {
		i, keyword := i, keyword
		g.Go(func() error {
			raw, err := a.searcher.Search(gctx, keyword, opts)
			if err != nil {
				return fmt.Errorf("search %q: %w", keyword, err)
			}
			results[i] = a.normalize(raw, keyword)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Errorf("offer search failed: %v", err)
		return nil, err
	}

	var all []Offer
	for _, r := range results {
		all = append(all, r...)
	}
	return GroupByRetailer(Dedup(all)), nil
}

func (a *Aggregator) zipCode(cfg *devices.DeviceConfig) string {
	if cfg.Offers.ZipCode != "" {
		return cfg.Offers.ZipCode
	}
	if cfg.Location.ZipCode != "" {
		return cfg.Location.ZipCode
	}
	return a.defaultZip
}

func (a *Aggregator) normalize(raw []RawOffer, keyword string) []Offer {
	out := make([]Offer, 0, len(raw))
	for _, r := range raw {
		o := Offer{
			Name:        offerName(r),
			Retailer:    unknown,
			Description: r.Description,
			Keyword:     keyword,
		}
		if r.Price != nil {
			o.Price = *r.Price
		}
		if len(r.Advertisers) > 0 && r.Advertisers[0].Name != "" {
			o.Retailer = r.Advertisers[0].Name
		}
		if r.ID != "" {
			o.URL = a.siteURL + "/offers/" + string(r.ID)
		}
		out = append(out, o)
	}
	return out
}

func offerName(r RawOffer) string {
	product, brand := "", ""
	if r.Product != nil {
		product = r.Product.Name
	}
	if r.Brand != nil {
		brand = r.Brand.Name
	}
	switch {
	case product == "" && brand == "":
		return unknown
	case product == "":
		return unknown + " - " + brand
	case brand == "":
		return product + " - " + unknown
	}
	return product + " - " + brand
}

type offerKey struct {
	name     string
	price    float64
	retailer string
}

// Dedup drops repeated (name, price, retailer) triples, first occurrence wins.
func Dedup(in []Offer) []Offer {
	seen := make(map[offerKey]bool, len(in))
	out := make([]Offer, 0, len(in))
	for _, o := range in {
		k := offerKey{o.Name, o.Price, o.Retailer}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o)
	}
	return out
}

// RetailerKey is the first space separated token of the retailer name.
func RetailerKey(retailer string) string {
	if f := strings.Fields(retailer); len(f) > 0 {
		return f[0]
	}
	return unknown
}

// GroupByRetailer keeps the cheapest offer per product name within each
// retailer group. Groups are ordered by keyword, then name.
func GroupByRetailer(in []Offer) Groups {
	groups := Groups{}
	index := map[string]map[string]int{}
	for _, o := range in {
		key := RetailerKey(o.Retailer)
		if index[key] == nil {
			index[key] = map[string]int{}
		}
		if i, ok := index[key][o.Name]; ok {
			if o.Price < groups[key][i].Price {
				groups[key][i] = o
			}
			continue
		}
		index[key][o.Name] = len(groups[key])
		groups[key] = append(groups[key], o)
	}

	for _, offers := range groups {
		sort.SliceStable(offers, func(i, j int) bool {
			if offers[i].Keyword != offers[j].Keyword {
				return offers[i].Keyword < offers[j].Keyword
			}
			return offers[i].Name < offers[j].Name
		})
	}
	return groups
}
