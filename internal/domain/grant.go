package domain

import (
	"fmt"
	"time"
)

// KnowledgeShare records that one embedded chunk is visible to one extra
// user. Shares are written only when a request is approved and are never
// revoked within the current design.
type KnowledgeShare struct {
	ID               int64
	EmbeddingID      int64
	OwnerID          string
	SharedWithUserID string
	CreatedAt        time.Time
}

// ValidateKnowledgeShare validates a KnowledgeShare instance
func ValidateKnowledgeShare(s *KnowledgeShare) error {
	if s == nil {
		return fmt.Errorf("knowledge share cannot be nil")
	}

	if s.EmbeddingID == 0 {
		return fmt.Errorf("knowledge share EmbeddingID is required")
	}

	if s.OwnerID == "" {
		return fmt.Errorf("knowledge share OwnerID is required")
	}

	if s.SharedWithUserID == "" {
		return fmt.Errorf("knowledge share SharedWithUserID is required")
	}

	if s.OwnerID == s.SharedWithUserID {
		return fmt.Errorf("knowledge share cannot target its own owner")
	}

	return nil
}
