package domain

import (
	"fmt"
	"time"
)

// Resource represents an organization-level knowledge base entry. A soft
// deleted resource keeps its rows but is excluded from retrieval until a
// hard delete removes it and its embeddings for good.
type Resource struct {
	ID        int64
	OrgID     string
	UserID    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsDeleted returns true if the resource has been soft deleted
func (r *Resource) IsDeleted() bool {
	return r.DeletedAt != nil
}

// ValidateResource validates a Resource instance
func ValidateResource(r *Resource) error {
	if r == nil {
		return fmt.Errorf("resource cannot be nil")
	}

	if r.OrgID == "" {
		return fmt.Errorf("resource OrgID is required")
	}

	if r.UserID == "" {
		return fmt.Errorf("resource UserID is required")
	}

	if r.Content == "" {
		return fmt.Errorf("resource Content is required")
	}

	return nil
}
