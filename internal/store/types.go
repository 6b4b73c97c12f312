package store

import (
	"context"
	"time"
)

// InteractionRecord stores a single customer or AI utterance from a call.
type InteractionRecord struct {
	ID             string    `json:"id"`
	CallID         string    `json:"call_id"`
	Speaker        string    `json:"speaker"`
	Text           string    `json:"text"`
	SentimentLabel string    `json:"sentiment_label"`
	SentimentScore float64   `json:"sentiment_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists and retrieves call interactions.
type Store interface {
	SaveInteraction(ctx context.Context, record InteractionRecord) error
	RecentInteractions(ctx context.Context, callID string, limit int) ([]InteractionRecord, error)
	Close() error
}
