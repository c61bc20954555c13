package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/koningschat/koningschat/internal/domain"
)

// ChunkRepository persists chunk embeddings and answers nearest-neighbour
// queries. Distance is cosine (the <=> operator), matching the metric the
// embedding model was trained with; indexing and querying always use the
// same operator.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// ReplaceChunks deletes all chunks for a document and inserts the new set
// in one transaction. Readers see the old set or the new set, never a mix.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, contentID int64, chunks []*domain.Chunk) error {
	if err := domain.ValidateChunks(contentID, chunks); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE content_id = $1`, contentID); err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (content_id, chunk_index, chunk_text, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ContentID, c.ChunkIndex, c.Text, pgvector.NewVector(c.Embedding), createdAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// SearchNearest returns up to limit chunks ordered ascending by cosine
// distance to the query vector, each joined with its document's title and
// URL. Ties break on chunk id so repeated searches against an unchanged
// index return identical orderings. An empty index yields an empty slice.
func (r *ChunkRepository) SearchNearest(ctx context.Context, embedding []float32, limit int) ([]domain.SearchMatch, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidSearchLimit
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.content_id, e.chunk_index, e.chunk_text,
		        c.title, c.url,
		        e.embedding <=> $1 AS distance
		 FROM chunks e
		 JOIN content c ON e.content_id = c.id
		 ORDER BY e.embedding <=> $1, e.id
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.SearchMatch, 0, limit)
	for rows.Next() {
		var m domain.SearchMatch
		if err := rows.Scan(&m.ChunkID, &m.ContentID, &m.ChunkIndex, &m.Text, &m.Title, &m.URL, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListByContent returns a document's chunks in ordinal order.
func (r *ChunkRepository) ListByContent(ctx context.Context, contentID int64) ([]*domain.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, content_id, chunk_index, chunk_text, created_at
		 FROM chunks WHERE content_id = $1 ORDER BY chunk_index`,
		contentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.ContentID, &c.ChunkIndex, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}
