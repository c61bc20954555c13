package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koningschat/koningschat/internal/domain"
)

// EmbedJobRepository persists the per-document embedding queue.
type EmbedJobRepository struct {
	db dbtx
}

func NewEmbedJobRepository(pool *pgxpool.Pool) *EmbedJobRepository {
	return &EmbedJobRepository{db: pool}
}

func NewEmbedJobRepositoryWithTx(tx pgx.Tx) *EmbedJobRepository {
	return &EmbedJobRepository{db: tx}
}

func (r *EmbedJobRepository) Create(ctx context.Context, job *domain.EmbedJob) error {
	if err := domain.ValidateEmbedJob(job); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO embed_jobs (id, content_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.ContentID, job.Status, job.Retries, job.Error, job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *EmbedJobRepository) GetByID(ctx context.Context, id string) (*domain.EmbedJob, error) {
	var job domain.EmbedJob
	var errMsg pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, content_id, status, retries, error, created_at, processed_at
		 FROM embed_jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.ContentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmbedJobNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

// ClaimPending atomically marks up to limit pending jobs as processing and
// returns them. FOR UPDATE SKIP LOCKED keeps concurrent pollers from
// claiming the same job twice.
func (r *EmbedJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.EmbedJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM embed_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE embed_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE embed_jobs.id = cte.id
		 RETURNING embed_jobs.id, embed_jobs.content_id, embed_jobs.status,
		           embed_jobs.retries, embed_jobs.error, embed_jobs.created_at, embed_jobs.processed_at`,
		domain.EmbedJobStatusPending, limit, domain.EmbedJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.EmbedJob
	for rows.Next() {
		var job domain.EmbedJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.ContentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *EmbedJobRepository) UpdateStatus(ctx context.Context, id string, status domain.EmbedJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.EmbedJobStatusCompleted || status == domain.EmbedJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE embed_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, errPtr, processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEmbedJobNotFound
	}
	return nil
}

func (r *EmbedJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE embed_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEmbedJobNotFound
	}
	return nil
}
