// Package quotes picks one short quote per calendar day from a stored batch
// that is refreshed from upstream once a day.
package quotes

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/apex/log"

	"com.aviebrantz.feedhub/pkg/clock"
	store "com.aviebrantz.feedhub/pkg/core/store/quotes"
)

const DefaultMaxLength = 72

// Source tells where the quote of the day came from.
type Source string

const (
	SourceFresh     Source = "fresh"
	SourceRefreshed Source = "refreshed"
	SourceStale     Source = "stale"
	SourceFallback  Source = "fallback"
)

var ErrNoQualifyingQuotes = errors.New("no quote within the length limit")

var Fallback = store.Quote{
	Text:   "Simplicity is prerequisite for reliability.",
	Author: "Edsger W. Dijkstra",
}

type Rotator struct {
	fetcher  Fetcher
	batches  store.BatchStore
	clock    clock.Clock
	maxLen   int
	batchTTL time.Duration
	logger   *log.Entry
}

func NewRotator(fetcher Fetcher, batches store.BatchStore, clk clock.Clock, maxLen int, batchTTL time.Duration) *Rotator {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	if batchTTL <= 0 {
		batchTTL = 24 * time.Hour
	}
	return &Rotator{
		fetcher:  fetcher,
		batches:  batches,
		clock:    clk,
		maxLen:   maxLen,
		batchTTL: batchTTL,
		logger:   log.WithField("module", "quotes"),
	}
}

// QuoteOfTheDay never fails: a fresh batch is preferred, then a refreshed
// one, then the last stored batch even if expired, then Fallback.
func (r *Rotator) QuoteOfTheDay(ctx context.Context) (store.Quote, Source) {
	now := r.clock.Now()

	batch, err := r.batches.GetBatch(ctx)
	if err != nil {
		r.logger.Warnf("read quote batch: %v", err)
		batch = nil
	}
	if !batch.Expired(now) {
		return Select(batch.Quotes, now), SourceFresh
	}

	fresh, err := r.refresh(ctx, now)
	if err == nil {
		return Select(fresh.Quotes, now), SourceRefreshed
	}
	r.logger.Warnf("refresh quotes: %v", err)

	if batch != nil && len(batch.Quotes) > 0 {
		return Select(batch.Quotes, now), SourceStale
	}
	return Fallback, SourceFallback
}

func (r *Rotator) refresh(ctx context.Context, now time.Time) (*store.Batch, error) {
	raw, err := r.fetcher.Quotes(ctx)
	if err != nil {
		return nil, err
	}

	quotes := Filter(raw, r.maxLen)
	if len(quotes) == 0 {
		return nil, ErrNoQualifyingQuotes
	}

	batch := &store.Batch{Quotes: quotes, ExpiresAt: now.Add(r.batchTTL)}
	if err := r.batches.SaveBatch(ctx, batch); err != nil {
		r.logger.Warnf("save quote batch: %v", err)
	} else {
		r.logger.Infof("stored %d quotes until %s", len(quotes), batch.ExpiresAt.Format(time.RFC3339))
	}
	return batch, nil
}

// Filter keeps quotes with text of at most maxLen characters.
func Filter(raw []RawQuote, maxLen int) []store.Quote {
	out := make([]store.Quote, 0, len(raw))
	for _, q := range raw {
		text := strings.TrimSpace(q.Q)
		if text == "" || utf8.RuneCountInString(text) > maxLen {
			continue
		}
		out = append(out, store.Quote{Text: text, Author: strings.TrimSpace(q.A)})
	}
	return out
}

// Select picks the quote for the calendar day of now: day-of-year modulo the
// batch length.
func Select(quotes []store.Quote, now time.Time) store.Quote {
	return quotes[now.YearDay()%len(quotes)]
}
