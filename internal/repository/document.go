package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koningschat/koningschat/internal/domain"
)

// DocumentRepository persists scraped pages in the content table.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Upsert inserts a document or, when the URL already exists, overwrites
// title and body and bumps updated_at. Returns the document id.
func (r *DocumentRepository) Upsert(ctx context.Context, d *domain.Document) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO content (url, title, body, scraped_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (url)
		 DO UPDATE SET
		 	title = EXCLUDED.title,
		 	body = EXCLUDED.body,
		 	updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		d.URL, d.Title, d.Body, d.ScrapedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, url, title, body, scraped_at, updated_at
		 FROM content WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.URL, &d.Title, &d.Body, &d.ScrapedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DocumentRepository) GetByURL(ctx context.Context, url string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, url, title, body, scraped_at, updated_at
		 FROM content WHERE url = $1`,
		url,
	).Scan(&d.ID, &d.URL, &d.Title, &d.Body, &d.ScrapedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListAll returns every document, most recently scraped first.
func (r *DocumentRepository) ListAll(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, url, title, body, scraped_at, updated_at
		 FROM content ORDER BY scraped_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.URL, &d.Title, &d.Body, &d.ScrapedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM content`).Scan(&count)
	return count, err
}

// Ping checks storage reachability for the health endpoint.
func (r *DocumentRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
