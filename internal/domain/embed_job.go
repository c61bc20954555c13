package domain

import (
	"fmt"
	"time"
)

// EmbedJobStatus represents the status of an embed job
type EmbedJobStatus string

const (
	EmbedJobStatusPending    EmbedJobStatus = "pending"
	EmbedJobStatusProcessing EmbedJobStatus = "processing"
	EmbedJobStatusCompleted  EmbedJobStatus = "completed"
	EmbedJobStatusFailed     EmbedJobStatus = "failed"
)

// EmbedJob queues chunk regeneration for one document. The scraper enqueues
// a job after each saved page; the background worker drains the queue.
type EmbedJob struct {
	ID          string
	ContentID   int64
	Status      EmbedJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewEmbedJob creates a pending EmbedJob for a document.
func NewEmbedJob(id string, contentID int64, createdAt time.Time) *EmbedJob {
	return &EmbedJob{
		ID:        id,
		ContentID: contentID,
		Status:    EmbedJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateEmbedJob validates an EmbedJob instance
func ValidateEmbedJob(j *EmbedJob) error {
	if j == nil {
		return fmt.Errorf("embed job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("embed job ID is required")
	}
	if j.ContentID <= 0 {
		return fmt.Errorf("embed job ContentID is required")
	}
	if !isValidEmbedJobStatus(j.Status) {
		return fmt.Errorf("embed job Status is invalid: %s", j.Status)
	}
	return nil
}

func isValidEmbedJobStatus(s EmbedJobStatus) bool {
	switch s {
	case EmbedJobStatusPending, EmbedJobStatusProcessing, EmbedJobStatusCompleted, EmbedJobStatusFailed:
		return true
	}
	return false
}
