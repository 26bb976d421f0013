package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a page, media record or account does not exist.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var item Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, role, created_at
		FROM accounts
		WHERE email = LOWER($1)
	`, strings.TrimSpace(email)).Scan(&item.ID, &item.Email, &item.DisplayName, &item.PasswordHash, &item.Role, &item.CreatedAt)
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", notFound(err))
	}
	return item, nil
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, item Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, display_name, password_hash, role)
		VALUES ($1, LOWER($2), $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role
	`, item.ID, strings.TrimSpace(item.Email), item.DisplayName, item.PasswordHash, item.Role)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPages(ctx context.Context) ([]PageSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, updated_by, updated_at
		FROM pages
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	items := make([]PageSummary, 0)
	for rows.Next() {
		var item PageSummary
		if err := rows.Scan(&item.ID, &item.Slug, &item.Title, &item.UpdatedBy, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return items, nil
}

const pageColumns = `id, slug, title, content, body_text, updated_by, updated_at`

func scanPage(row interface{ Scan(...any) error }) (Page, error) {
	var item Page
	var content []byte
	if err := row.Scan(&item.ID, &item.Slug, &item.Title, &content, &item.BodyText, &item.UpdatedBy, &item.UpdatedAt); err != nil {
		return Page{}, err
	}
	item.Content = content
	return item, nil
}

func (s *PostgresStore) GetPage(ctx context.Context, id string) (Page, error) {
	item, err := scanPage(s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id=$1`, id))
	if err != nil {
		return Page{}, fmt.Errorf("get page %s: %w", id, notFound(err))
	}
	return item, nil
}

func (s *PostgresStore) GetPageBySlug(ctx context.Context, slug string) (Page, error) {
	item, err := scanPage(s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE slug=$1`, slug))
	if err != nil {
		return Page{}, fmt.Errorf("get page %s: %w", slug, notFound(err))
	}
	return item, nil
}

// GetPagesByIDs returns slugs for the given page ids. Missing ids are absent from
// the result.
func (s *PostgresStore) GetPagesByIDs(ctx context.Context, ids []string) (map[string]PageRef, error) {
	out := make(map[string]PageRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug FROM pages WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get pages by id: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref PageRef
		if err := rows.Scan(&ref.ID, &ref.Slug); err != nil {
			return nil, fmt.Errorf("scan page ref: %w", err)
		}
		out[ref.ID] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page refs: %w", err)
	}
	return out, nil
}

// UpsertPage inserts a page or replaces the page with the same slug. The stored
// row, including its id, is returned.
func (s *PostgresStore) UpsertPage(ctx context.Context, item Page) (Page, error) {
	saved, err := scanPage(s.db.QueryRowContext(ctx, `
		INSERT INTO pages (id, slug, title, content, body_text, updated_by, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, NOW())
		ON CONFLICT (slug) DO UPDATE
		SET title = EXCLUDED.title,
			content = EXCLUDED.content,
			body_text = EXCLUDED.body_text,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
		RETURNING `+pageColumns,
		item.ID, item.Slug, item.Title, string(item.Content), item.BodyText, item.UpdatedBy))
	if err != nil {
		return Page{}, fmt.Errorf("upsert page %s: %w", item.Slug, err)
	}
	return saved, nil
}

func (s *PostgresStore) DeletePage(ctx context.Context, slug string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE slug=$1`, slug)
	if err != nil {
		return fmt.Errorf("delete page %s: %w", slug, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete page %s: %w", slug, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete page %s: %w", slug, ErrNotFound)
	}
	return nil
}

const mediaColumns = `id, filename, url, alt, mime_type, width, height, filesize, created_by, created_at`

func scanMedia(row interface{ Scan(...any) error }) (Media, error) {
	var item Media
	err := row.Scan(&item.ID, &item.Filename, &item.URL, &item.Alt, &item.MimeType, &item.Width, &item.Height, &item.Filesize, &item.CreatedBy, &item.CreatedAt)
	return item, err
}

func (s *PostgresStore) GetMedia(ctx context.Context, id string) (Media, error) {
	item, err := scanMedia(s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id=$1`, id))
	if err != nil {
		return Media{}, fmt.Errorf("get media %s: %w", id, notFound(err))
	}
	return item, nil
}

func (s *PostgresStore) GetMediaByIDs(ctx context.Context, ids []string) (map[string]Media, error) {
	out := make(map[string]Media, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get media by id: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		out[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertMedia(ctx context.Context, item Media) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media (id, filename, url, alt, mime_type, width, height, filesize, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Filename, item.URL, item.Alt, item.MimeType, item.Width, item.Height, item.Filesize, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMedia(ctx context.Context, limit, offset int) ([]Media, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mediaColumns+`
		FROM media
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := make([]Media, 0)
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
