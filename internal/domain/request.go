package domain

import (
	"fmt"
	"time"
)

// RequestStatus represents the lifecycle state of a knowledge request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDenied   RequestStatus = "denied"
)

// RequestDecision is the owner's answer to a pending request
type RequestDecision string

const (
	DecisionApprove RequestDecision = "approve"
	DecisionDeny    RequestDecision = "deny"
)

// KnowledgeRequest asks the owner of an embedded chunk to share it with
// the requester. Created pending; the owner moves it to exactly one of
// the terminal states. Requests are never deleted (audit trail).
type KnowledgeRequest struct {
	ID              int64
	RequesterID     string
	OwnerID         string
	EmbeddingID     int64
	ConversationID  *int64
	Question        string
	Status          RequestStatus
	ResponseContent string
	CreatedAt       time.Time
	RespondedAt     *time.Time
}

// IsPending returns true while the owner has not yet responded
func (r *KnowledgeRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// Resolve applies the owner's decision. Only a pending request can be
// resolved; RespondedAt is set together with the terminal status.
func (r *KnowledgeRequest) Resolve(decision RequestDecision, responseContent string, at time.Time) error {
	if !r.IsPending() {
		return ErrRequestNotFound
	}

	switch decision {
	case DecisionApprove:
		r.Status = RequestStatusApproved
	case DecisionDeny:
		r.Status = RequestStatusDenied
	default:
		return fmt.Errorf("invalid decision: %s", decision)
	}

	r.ResponseContent = responseContent
	at = at.UTC()
	r.RespondedAt = &at
	return nil
}

// ValidateKnowledgeRequest validates a KnowledgeRequest instance
func ValidateKnowledgeRequest(r *KnowledgeRequest) error {
	if r == nil {
		return fmt.Errorf("knowledge request cannot be nil")
	}

	if r.RequesterID == "" {
		return fmt.Errorf("knowledge request RequesterID is required")
	}

	if r.OwnerID == "" {
		return fmt.Errorf("knowledge request OwnerID is required")
	}

	if r.RequesterID == r.OwnerID {
		return fmt.Errorf("knowledge request RequesterID must differ from OwnerID")
	}

	if r.EmbeddingID == 0 {
		return fmt.Errorf("knowledge request EmbeddingID is required")
	}

	if r.Question == "" {
		return fmt.Errorf("knowledge request Question is required")
	}

	if !isValidRequestStatus(r.Status) {
		return fmt.Errorf("knowledge request Status is invalid: %s", r.Status)
	}

	if (r.RespondedAt != nil) != (r.Status != RequestStatusPending) {
		return fmt.Errorf("knowledge request RespondedAt must be set exactly when status is terminal")
	}

	return nil
}

// isValidRequestStatus checks if a RequestStatus is valid
func isValidRequestStatus(s RequestStatus) bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusDenied:
		return true
	}
	return false
}

// ParseRequestDecision parses the wire form of a decision
func ParseRequestDecision(s string) (RequestDecision, error) {
	switch RequestDecision(s) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionDeny:
		return DecisionDeny, nil
	}
	return "", NewDomainError(ErrCodeValidation, fmt.Sprintf("invalid decision: %q (expected approve or deny)", s))
}
