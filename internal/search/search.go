package search

import (
	"context"
	"time"
)

// Result is a single page hit, shaped like the listing summary so clients
// consume one shape everywhere.
type Result struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Icon       string    `json:"icon,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	IsArchived bool      `json:"isArchived"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Query describes a page title search, always scoped to one owner and
// excluding archived pages.
type Query struct {
	OwnerID string
	Text    string
	Limit   int
}

// Searcher can execute a page search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, error)
	Healthy() bool
}

// PageRecord is the data we index for a page.
type PageRecord struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Title      string    `json:"title"`
	Icon       string    `json:"icon"`
	IsFavorite bool      `json:"isFavorite"`
	IsArchived bool      `json:"isArchived"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
