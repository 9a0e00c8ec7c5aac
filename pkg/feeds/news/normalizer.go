// Package news turns a keyword search into the short article list a device
// shows as news of the day.
package news

import (
	"context"
	"errors"

	"github.com/apex/log"

	"com.aviebrantz.feedhub/pkg/core/store/devices"
)

const DefaultPageSize = 5

var DefaultLanguages = []string{"de", "en"}

// ErrInvalidResponse means the provider answered without a result list.
var ErrInvalidResponse = errors.New("news response carries no results")

type Article struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Creator     string `json:"creator"`
	PubDate     string `json:"pubDate"`
	Description string `json:"description"`
}

type Normalizer struct {
	searcher  Searcher
	languages []string
	pageSize  int
	logger    *log.Entry
}

// NewNormalizer uses languages and pageSize for devices that configure none.
func NewNormalizer(searcher Searcher, languages []string, pageSize int) *Normalizer {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Normalizer{
		searcher:  searcher,
		languages: languages,
		pageSize:  pageSize,
		logger:    log.WithField("module", "news"),
	}
}

// Request resolves the search a configuration asks for.
func (n *Normalizer) Request(cfg *devices.DeviceConfig) SearchRequest {
	settings := cfg.NewsOfTheDay
	req := SearchRequest{
		Keywords:  settings.Keywords,
		Languages: settings.Languages,
		PageSize:  settings.PageSize,
	}
	if len(req.Languages) == 0 {
		req.Languages = n.languages
	}
	if req.PageSize <= 0 {
		req.PageSize = n.pageSize
	}
	return req
}

func (n *Normalizer) GetNews(ctx context.Context, cfg *devices.DeviceConfig) ([]Article, error) {
	raw, err := n.searcher.Search(ctx, n.Request(cfg))
	if err != nil {
		n.logger.Warnf("news search for %s: %v", cfg.DeviceID, err)
		return nil, err
	}

	articles := make([]Article, 0, len(raw))
	for _, r := range raw {
		articles = append(articles, Article{
			Title:       r.Title,
			Link:        r.Link,
			Creator:     r.SourceName,
			PubDate:     r.PubDate,
			Description: r.Description,
		})
	}
	return articles, nil
}
