package domain

import (
	"fmt"
	"time"
)

// MessageEmbedding is one embedded chunk of a conversation message. The
// chunk carries its own copy of the text so retrieval never needs the
// parent row, and exactly one vector computed when the chunk was written.
type MessageEmbedding struct {
	ID         int64
	MessageID  int64
	Content    string
	Embedding  []float32
	ChunkIndex int
	CreatedAt  time.Time
}

// ResourceEmbedding is one embedded chunk of an organization resource.
type ResourceEmbedding struct {
	ID         int64
	ResourceID int64
	Content    string
	Embedding  []float32
	ChunkIndex int
	CreatedAt  time.Time
}

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob represents an async embedding generation job for a saved
// message. Message embedding is deferred so saving a chat turn never
// blocks on the embedding provider.
type EmbeddingJob struct {
	ID          string
	MessageID   int64
	Status      EmbeddingJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateEmbeddingJob validates an EmbeddingJob instance
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}

	if j.MessageID == 0 {
		return fmt.Errorf("embedding job MessageID is required")
	}

	if !isValidEmbeddingJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}

	return nil
}

// isValidEmbeddingJobStatus checks if an EmbeddingJobStatus is valid
func isValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
