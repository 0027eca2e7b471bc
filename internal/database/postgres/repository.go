package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bigshort-one/bigshort/internal/database"
	"github.com/bigshort-one/bigshort/internal/models"
)

type urlRecord struct {
	ID            int64      `db:"id"`
	ShortCode     string     `db:"short_code"`
	OriginalURL   string     `db:"original_url"`
	IsCustom      bool       `db:"is_custom"`
	IsPublic      bool       `db:"is_public"`
	Clicks        int64      `db:"clicks"`
	LastClickedAt *time.Time `db:"last_clicked_at"`
	Metadata      []byte     `db:"metadata"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (r *urlRecord) ToURL() (*models.URL, error) {
	url := &models.URL{
		ID:            r.ID,
		ShortCode:     r.ShortCode,
		OriginalURL:   r.OriginalURL,
		IsCustom:      r.IsCustom,
		IsPublic:      r.IsPublic,
		Clicks:        r.Clicks,
		LastClickedAt: r.LastClickedAt,
		CreatedAt:     r.CreatedAt,
	}

	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &url.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return url, nil
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

// Insert persists a new URL record. The record is created once and mutated
// only by RecordClick afterwards; it is never deleted.
func (r *URLRepository) Insert(ctx context.Context, url *models.URL) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Insert"

	metadata, err := json.Marshal(url.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal metadata: %w", op, err)
	}

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, original_url, is_custom, is_public, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`

	err = r.db.GetContext(ctx, rec, query, url.ShortCode, url.OriginalURL, url.IsCustom, url.IsPublic, metadata)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert url record: %w", op, err)
	}

	created, err := rec.ToURL()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

// GetByShortCode retrieves a record without touching its click counter.
// Click accounting is a separate atomic operation, never folded into reads.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	url, err := rec.ToURL()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return url, nil
}

// RecordClick bumps the visit counter in a single atomic UPDATE. A
// read-modify-write here would lose increments under concurrent resolutions
// of the same code, so the increment is pushed down into the statement.
func (r *URLRepository) RecordClick(ctx context.Context, shortCode string) error {
	const op = "database.postgres.URLRepository.RecordClick"

	query := `UPDATE urls
		SET clicks = clicks + 1, last_clicked_at = now()
		WHERE short_code = $1`

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return nil
}

// ListRecent returns the most recently created public records, newest
// first. The limit is clamped to 100.
func (r *URLRepository) ListRecent(ctx context.Context, limit int) ([]*models.URL, error) {
	const op = "database.postgres.URLRepository.ListRecent"

	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var recs []urlRecord
	query := `SELECT * FROM urls
		WHERE is_public = TRUE
		ORDER BY created_at DESC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]*models.URL, 0, len(recs))
	for i := range recs {
		url, err := recs[i].ToURL()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		urls = append(urls, url)
	}

	return urls, nil
}

func (r *URLRepository) Ping(ctx context.Context) error {
	const op = "database.postgres.URLRepository.Ping"

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: database unreachable: %w", op, err)
	}

	return nil
}
