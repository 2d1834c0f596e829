package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Page is a user-owned note. Content is the authoritative rich-text payload
// (a JSON block sequence, never null); summary and tags are AI-derived caches.
type Page struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"-"`
	Title      string          `json:"title"`
	Icon       string          `json:"icon,omitempty"`
	CoverImage string          `json:"coverImage,omitempty"`
	Content    json.RawMessage `json:"content"`
	Tags       []string        `json:"tags"`
	Summary    string          `json:"summary,omitempty"`
	IsFavorite bool            `json:"isFavorite"`
	IsArchived bool            `json:"isArchived"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// PageSummary is the listing shape: everything but the content payload.
type PageSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Icon       string    `json:"icon,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	IsArchived bool      `json:"isArchived"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PageFields is the allow-listed partial update for a page. A nil field is
// left untouched; anything outside this struct simply has no way in.
type PageFields struct {
	Title      *string
	Icon       *string
	CoverImage *string
	Content    json.RawMessage
	Tags       *[]string
	Summary    *string
}

// Empty reports whether the update carries no recognized field.
func (f PageFields) Empty() bool {
	return f.Title == nil && f.Icon == nil && f.CoverImage == nil &&
		f.Content == nil && f.Tags == nil && f.Summary == nil
}
