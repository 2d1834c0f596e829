package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const pageColumns = `id, owner_id, title, icon, cover_image, content, tags, summary, is_favorite, is_archived, created_at, updated_at`

// PostgresStore persists users and pages. Every page operation is scoped by
// owner: a page owned by someone else scans as sql.ErrNoRows, identical to a
// page that does not exist.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// Users
// =============================================================================

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// =============================================================================
// Pages
// =============================================================================

func (s *PostgresStore) ListPages(ctx context.Context, ownerID string) ([]PageSummary, error) {
	return s.listPages(ctx, ownerID, false)
}

// ListTrash returns the owner's archived pages.
func (s *PostgresStore) ListTrash(ctx context.Context, ownerID string) ([]PageSummary, error) {
	return s.listPages(ctx, ownerID, true)
}

func (s *PostgresStore) listPages(ctx context.Context, ownerID string, archived bool) ([]PageSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, icon, is_favorite, is_archived, updated_at
		FROM pages
		WHERE owner_id = $1 AND is_archived = $2
		ORDER BY updated_at DESC
	`, ownerID, archived)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	items := make([]PageSummary, 0)
	for rows.Next() {
		var item PageSummary
		if err := rows.Scan(&item.ID, &item.Title, &item.Icon, &item.IsFavorite, &item.IsArchived, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPage(ctx context.Context, ownerID, pageID string) (Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+pageColumns+`
		FROM pages
		WHERE id = $1 AND owner_id = $2
	`, pageID, ownerID)
	return scanPage(row)
}

func (s *PostgresStore) CreatePage(ctx context.Context, ownerID, pageID, title, icon string) (Page, error) {
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO pages (id, owner_id, title, icon)
		VALUES ($1, $2, $3, $4)
		RETURNING `+pageColumns+`
	`, pageID, ownerID, title, icon)
	page, err := scanPage(row)
	if err != nil {
		return Page{}, fmt.Errorf("insert page: %w", err)
	}
	return page, nil
}

// UpdatePage applies the allow-listed partial update and returns the updated
// page. sql.ErrNoRows means absent or not owned.
func (s *PostgresStore) UpdatePage(ctx context.Context, ownerID, pageID string, fields PageFields) (Page, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{pageID, ownerID}
	next := 3

	appendSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, next))
		args = append(args, value)
		next++
	}

	if fields.Title != nil {
		appendSet("title", *fields.Title)
	}
	if fields.Icon != nil {
		appendSet("icon", *fields.Icon)
	}
	if fields.CoverImage != nil {
		appendSet("cover_image", *fields.CoverImage)
	}
	if fields.Content != nil {
		appendSet("content", []byte(fields.Content))
	}
	if fields.Tags != nil {
		encoded, err := json.Marshal(*fields.Tags)
		if err != nil {
			return Page{}, fmt.Errorf("encode tags: %w", err)
		}
		appendSet("tags", encoded)
	}
	if fields.Summary != nil {
		appendSet("summary", *fields.Summary)
	}

	query := fmt.Sprintf(`
		UPDATE pages SET %s
		WHERE id = $1 AND owner_id = $2
		RETURNING %s
	`, strings.Join(sets, ", "), pageColumns)

	row := s.db.QueryRowContext(ctx, query, args...)
	return scanPage(row)
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *PostgresStore) ToggleFavorite(ctx context.Context, ownerID, pageID string) (bool, error) {
	var isFavorite bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE pages
		SET is_favorite = NOT is_favorite, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND is_archived = FALSE
		RETURNING is_favorite
	`, pageID, ownerID).Scan(&isFavorite)
	if err != nil {
		return false, err
	}
	return isFavorite, nil
}

// ToggleArchive flips the archived flag and returns the new value. Archiving
// clears favorite; unarchiving does not restore it.
func (s *PostgresStore) ToggleArchive(ctx context.Context, ownerID, pageID string) (bool, error) {
	var isArchived bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE pages
		SET is_archived = NOT is_archived,
			is_favorite = CASE WHEN NOT is_archived THEN FALSE ELSE is_favorite END,
			updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING is_archived
	`, pageID, ownerID).Scan(&isArchived)
	if err != nil {
		return false, err
	}
	return isArchived, nil
}

func (s *PostgresStore) DeletePage(ctx context.Context, ownerID, pageID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM pages WHERE id = $1 AND owner_id = $2
	`, pageID, ownerID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete page result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (Page, error) {
	var page Page
	var content, tags []byte
	err := row.Scan(
		&page.ID,
		&page.OwnerID,
		&page.Title,
		&page.Icon,
		&page.CoverImage,
		&content,
		&tags,
		&page.Summary,
		&page.IsFavorite,
		&page.IsArchived,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err != nil {
		return Page{}, err
	}

	page.Content = json.RawMessage(content)
	if len(page.Content) == 0 {
		page.Content = json.RawMessage(`[]`)
	}
	if err := json.Unmarshal(tags, &page.Tags); err != nil || page.Tags == nil {
		page.Tags = []string{}
	}
	return page, nil
}

// IsNotFound reports whether err is the store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
