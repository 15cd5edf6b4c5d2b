package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidRequestStatus      = NewDomainError(ErrCodeValidation, "invalid knowledge request status")
	ErrInvalidMessageRole        = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrInvalidEmbeddingJobStatus = NewDomainError(ErrCodeValidation, "invalid embedding job status")
	ErrEmptyQuestion             = NewDomainError(ErrCodeValidation, "question must not be empty")
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrEmbeddingNotFound    = NewDomainError(ErrCodeNotFound, "embedding not found")
	ErrResourceNotFound     = NewDomainError(ErrCodeNotFound, "resource not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrMessageNotFound      = NewDomainError(ErrCodeNotFound, "message not found")
	ErrUserNotFound         = NewDomainError(ErrCodeNotFound, "user not found")
	ErrOrganizationNotFound = NewDomainError(ErrCodeNotFound, "organization not found")
	ErrNotificationNotFound = NewDomainError(ErrCodeNotFound, "notification not found")
	ErrAPIKeyNotFound       = NewDomainError(ErrCodeNotFound, "api key not found")
)

// ErrRequestNotFound deliberately covers both "no such request" and
// "request not owned by the caller" so the API never leaks the existence
// of other users' requests.
var ErrRequestNotFound = NewDomainError(ErrCodeNotFound, "request not found or already processed")

// Already exists errors
var (
	ErrOrganizationAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "organization already exists")
	ErrUserAlreadyExists         = NewDomainError(ErrCodeAlreadyExists, "user already exists")
	ErrAPIKeyAlreadyExists       = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Knowledge sharing conflicts. Each one maps to a distinct user-facing
// message; callers must not collapse them into a generic failure.
var (
	ErrOwnKnowledge     = NewDomainError(ErrCodeConflict, "cannot request your own knowledge")
	ErrAlreadyShared    = NewDomainError(ErrCodeConflict, "this knowledge is already shared with you")
	ErrDuplicateRequest = NewDomainError(ErrCodeConflict, "you already have a pending request for this knowledge")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)
