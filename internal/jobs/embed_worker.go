package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/koningschat/koningschat/internal/domain"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3

	// claimBatchSize bounds how many jobs one poll picks up.
	claimBatchSize = 10
)

// EmbedJobRepository defines the interface for embed job persistence
type EmbedJobRepository interface {
	// ClaimPending claims up to limit pending jobs for this worker.
	ClaimPending(ctx context.Context, limit int) ([]*domain.EmbedJob, error)

	// UpdateStatus updates the status of an embed job
	UpdateStatus(ctx context.Context, id string, status domain.EmbedJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, id string) error
}

// RebuilderInterface regenerates a document's chunks and embeddings
type RebuilderInterface interface {
	RebuildDocument(ctx context.Context, contentID int64) error
}

// EmbedWorker drains the embed job queue: each claimed job re-chunks and
// re-embeds one scraped document.
type EmbedWorker struct {
	repo    EmbedJobRepository
	indexer RebuilderInterface
}

// NewEmbedWorker creates a new EmbedWorker instance
func NewEmbedWorker(repo EmbedJobRepository, indexer RebuilderInterface) *EmbedWorker {
	return &EmbedWorker{
		repo:    repo,
		indexer: indexer,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbedWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("jobs: processing %d embed jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("jobs: job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *EmbedWorker) processJob(ctx context.Context, job *domain.EmbedJob) error {
	log.Printf("jobs: rebuilding content %d (job %s)", job.ContentID, job.ID)

	if err := w.indexer.RebuildDocument(ctx, job.ContentID); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbedJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	return nil
}

// handleJobFailure requeues a failed job until it runs out of retries.
func (w *EmbedWorker) handleJobFailure(ctx context.Context, job *domain.EmbedJob, jobErr error) error {
	log.Printf("jobs: job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("jobs: job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbedJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbedJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
