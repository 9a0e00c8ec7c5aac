package quotes

import (
	"context"
	"time"
)

// BatchStore holds the single active quote batch. Saving replaces the
// previous batch wholesale.
type BatchStore interface {
	// GetBatch returns nil, nil when no batch was ever saved.
	GetBatch(ctx context.Context) (*Batch, error)
	SaveBatch(ctx context.Context, batch *Batch) error
}

type Quote struct {
	Text   string `json:"text" docstore:"text"`
	Author string `json:"author" docstore:"author"`
}

type Batch struct {
	Quotes    []Quote   `json:"quotes"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the batch should be refreshed at now.
func (b *Batch) Expired(now time.Time) bool {
	return b == nil || len(b.Quotes) == 0 || !now.Before(b.ExpiresAt)
}

const activeBatchID = "active"
