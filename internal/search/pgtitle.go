package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgTitle implements Searcher with a case-insensitive title substring match
// in PostgreSQL, used as the fallback when Meilisearch is not available.
type PgTitle struct {
	db *sql.DB
}

func NewPgTitle(db *sql.DB) *PgTitle {
	return &PgTitle{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgTitle) Healthy() bool {
	return true
}

func (p *PgTitle) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, icon, is_favorite, is_archived, updated_at
		FROM pages
		WHERE owner_id = $1 AND is_archived = FALSE AND title ILIKE '%' || $2 || '%'
		ORDER BY updated_at DESC
		LIMIT $3
	`, q.OwnerID, q.Text, limit)
	if err != nil {
		return nil, fmt.Errorf("pg title search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Icon, &r.IsFavorite, &r.IsArchived, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pg title scan: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// LoadAllRecords returns every page for full reindexing into Meilisearch.
func (p *PgTitle) LoadAllRecords(ctx context.Context) ([]PageRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, owner_id, title, icon, is_favorite, is_archived, updated_at
		FROM pages
	`)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	records := make([]PageRecord, 0)
	for rows.Next() {
		var r PageRecord
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Title, &r.Icon, &r.IsFavorite, &r.IsArchived, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
