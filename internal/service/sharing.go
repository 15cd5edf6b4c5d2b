package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/telemetry"
)

// ChunkOwner identifies who owns a message chunk.
type ChunkOwner struct {
	EmbeddingID int64
	OwnerID     string
	Content     string
}

// EmbeddingLookupRepository resolves a chunk to its owner.
type EmbeddingLookupRepository interface {
	GetChunkOwner(ctx context.Context, embeddingID int64) (*ChunkOwner, error)
}

// ShareRepositoryInterface defines read access to the share ledger.
type ShareRepositoryInterface interface {
	Exists(ctx context.Context, embeddingID int64, userID string) (bool, error)
}

// RequestRepositoryInterface defines the repository interface for access requests.
type RequestRepositoryInterface interface {
	Create(ctx context.Context, req *domain.KnowledgeRequest) error
	HasPending(ctx context.Context, embeddingID int64, requesterID string) (bool, error)
	List(ctx context.Context, q ListRequestsQuery) ([]*RequestDetail, error)
}

// RequestTxRepository is the transaction-bound slice of the request repository.
type RequestTxRepository interface {
	GetPendingForOwner(ctx context.Context, id int64, ownerID string) (*domain.KnowledgeRequest, error)
	UpdateStatus(ctx context.Context, req *domain.KnowledgeRequest) error
}

// ShareTxRepository appends to the share ledger within a transaction.
type ShareTxRepository interface {
	Create(ctx context.Context, share *domain.KnowledgeShare) error
}

// NotificationTxRepository writes durable notifications within a transaction.
type NotificationTxRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// NotificationWriteRepository writes durable notifications outside a transaction.
type NotificationWriteRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// RequestCreatedEvent is pushed to a knowledge owner when someone asks
// for access to one of their chunks.
type RequestCreatedEvent struct {
	RequestID      int64
	Question       string
	RequesterName  string
	RequesterEmail string
	CreatedAt      time.Time
}

// RequestResolvedEvent is pushed to a requester when the owner decides.
// Question and ConversationID point back at the conversation that
// triggered the request so the client can resume it.
type RequestResolvedEvent struct {
	RequestID       int64
	Status          domain.RequestStatus
	ResponseContent string
	Question        string
	ConversationID  *int64
	RespondedAt     time.Time
}

// Notifier delivers realtime events. Delivery is best effort: a failed
// push is logged and never fails the operation that triggered it, the
// durable notification row remains the source of truth.
type Notifier interface {
	RequestCreated(ctx context.Context, ownerID string, ev RequestCreatedEvent) error
	RequestResolved(ctx context.Context, requesterID string, ev RequestResolvedEvent) error
}

// RequestDetail is an access request enriched with the people and content
// around it, as shown in request listings.
type RequestDetail struct {
	Request        *domain.KnowledgeRequest
	RequesterName  string
	RequesterEmail string
	OwnerName      string
	OwnerEmail     string
	ChunkContent   string
	ParentMessage  string
}

// ListRequestsQuery is the filter a repository applies when listing requests.
type ListRequestsQuery struct {
	UserID    string
	Direction string
	Status    domain.RequestStatus
}

const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
	DirectionAll      = "all"
)

// SharingService coordinates the knowledge access request lifecycle:
// creating requests, resolving them, and recording grants.
type SharingService struct {
	requests   RequestRepositoryInterface
	shares     ShareRepositoryInterface
	embeddings EmbeddingLookupRepository
	users      UserRepository
	notifRepo  NotificationWriteRepository
	notifier   Notifier
	txRunner   TxRunner
}

func NewSharingService(
	requests RequestRepositoryInterface,
	shares ShareRepositoryInterface,
	embeddings EmbeddingLookupRepository,
	users UserRepository,
	notifRepo NotificationWriteRepository,
	notifier Notifier,
	txRunner TxRunner,
) *SharingService {
	return &SharingService{
		requests:   requests,
		shares:     shares,
		embeddings: embeddings,
		users:      users,
		notifRepo:  notifRepo,
		notifier:   notifier,
		txRunner:   txRunner,
	}
}

// CreateRequestInput represents the input for requesting access to a chunk
type CreateRequestInput struct {
	RequesterID    string
	EmbeddingID    int64
	Question       string
	ConversationID *int64
}

// CreateRequest asks a chunk's owner for access. Precondition checks run
// in a fixed order so the caller always learns the most fundamental
// problem first: unknown chunk, then own chunk, then already shared,
// then duplicate pending request.
func (s *SharingService) CreateRequest(ctx context.Context, input CreateRequestInput) (*domain.KnowledgeRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "SharingService.CreateRequest", telemetry.SpanAttributes{
		UserID:    input.RequesterID,
		Operation: "create_request",
	})
	defer span.End()

	if strings.TrimSpace(input.Question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if input.EmbeddingID <= 0 {
		return nil, domain.ErrEmbeddingNotFound
	}

	owner, err := s.embeddings.GetChunkOwner(ctx, input.EmbeddingID)
	if err != nil {
		return nil, err
	}

	if owner.OwnerID == input.RequesterID {
		return nil, domain.ErrOwnKnowledge
	}

	shared, err := s.shares.Exists(ctx, input.EmbeddingID, input.RequesterID)
	if err != nil {
		return nil, err
	}
	if shared {
		return nil, domain.ErrAlreadyShared
	}

	pending, err := s.requests.HasPending(ctx, input.EmbeddingID, input.RequesterID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, domain.ErrDuplicateRequest
	}

	requester, err := s.users.GetByID(ctx, input.RequesterID)
	if err != nil {
		return nil, err
	}

	req := &domain.KnowledgeRequest{
		RequesterID:    input.RequesterID,
		OwnerID:        owner.OwnerID,
		EmbeddingID:    input.EmbeddingID,
		ConversationID: input.ConversationID,
		Question:       strings.TrimSpace(input.Question),
		Status:         domain.RequestStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := domain.ValidateKnowledgeRequest(req); err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	ev := RequestCreatedEvent{
		RequestID:      req.ID,
		Question:       req.Question,
		RequesterName:  requester.Name,
		RequesterEmail: requester.Email,
		CreatedAt:      req.CreatedAt,
	}

	// The request row is committed at this point. Notification failures
	// are reported but do not undo the request. The chunk content rides
	// along so the owner can decide from the notification alone.
	notification := &domain.Notification{
		UserID: owner.OwnerID,
		Type:   domain.NotificationTypeKnowledgeRequest,
		Payload: map[string]any{
			"requestId":      req.ID,
			"embeddingId":    req.EmbeddingID,
			"question":       req.Question,
			"chunkContent":   owner.Content,
			"requesterName":  requester.Name,
			"requesterEmail": requester.Email,
			"createdAt":      req.CreatedAt.Format(time.RFC3339),
		},
		CreatedAt: req.CreatedAt,
	}
	if err := s.notifRepo.Create(ctx, notification); err != nil {
		log.Printf("sharing: durable notification failed for request %d: %v", req.ID, err)
		telemetry.CaptureError(ctx, err)
	}

	if s.notifier != nil {
		if err := s.notifier.RequestCreated(ctx, owner.OwnerID, ev); err != nil {
			log.Printf("sharing: realtime push failed for request %d: %v", req.ID, err)
		}
	}

	return req, nil
}

// RespondInput represents the owner's decision on a pending request
type RespondInput struct {
	RequestID       int64
	OwnerID         string
	Decision        string
	ResponseContent string
}

// Respond resolves a pending request. The status transition, the grant
// (on approval), and the requester's durable notification commit in a
// single transaction.
func (s *SharingService) Respond(ctx context.Context, input RespondInput) (*domain.KnowledgeRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "SharingService.Respond", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		Operation: "respond",
	})
	defer span.End()

	decision, err := domain.ParseRequestDecision(input.Decision)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var resolved *domain.KnowledgeRequest

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		req, err := repos.Requests().GetPendingForOwner(ctx, input.RequestID, input.OwnerID)
		if err != nil {
			return err
		}

		if err := req.Resolve(decision, input.ResponseContent, now); err != nil {
			return err
		}

		if err := repos.Requests().UpdateStatus(ctx, req); err != nil {
			return err
		}

		if req.Status == domain.RequestStatusApproved {
			share := &domain.KnowledgeShare{
				EmbeddingID:      req.EmbeddingID,
				OwnerID:          req.OwnerID,
				SharedWithUserID: req.RequesterID,
				CreatedAt:        now,
			}
			if err := domain.ValidateKnowledgeShare(share); err != nil {
				return err
			}
			if err := repos.Shares().Create(ctx, share); err != nil {
				return err
			}
		}

		notification := &domain.Notification{
			UserID:    req.RequesterID,
			Type:      notificationTypeForStatus(req.Status),
			Payload:   resolvedPayload(req),
			CreatedAt: now,
		}
		if err := repos.Notifications().Create(ctx, notification); err != nil {
			return err
		}

		resolved = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		ev := RequestResolvedEvent{
			RequestID:       resolved.ID,
			Status:          resolved.Status,
			ResponseContent: resolved.ResponseContent,
			Question:        resolved.Question,
			ConversationID:  resolved.ConversationID,
			RespondedAt:     *resolved.RespondedAt,
		}
		if err := s.notifier.RequestResolved(ctx, resolved.RequesterID, ev); err != nil {
			log.Printf("sharing: realtime push failed for request %d: %v", resolved.ID, err)
		}
	}

	return resolved, nil
}

// ListRequestsInput represents the filters for listing a user's requests
type ListRequestsInput struct {
	UserID    string
	Direction string
	Status    string
}

// ListRequests returns requests the user received, sent, or both,
// newest first.
func (s *SharingService) ListRequests(ctx context.Context, input ListRequestsInput) ([]*RequestDetail, error) {
	ctx, span := telemetry.StartSpan(ctx, "SharingService.ListRequests", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "list_requests",
	})
	defer span.End()

	direction := strings.ToLower(strings.TrimSpace(input.Direction))
	switch direction {
	case "":
		direction = DirectionReceived
	case DirectionReceived, DirectionSent, DirectionAll:
	default:
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "type must be received, sent, or all")
	}

	var status domain.RequestStatus
	if input.Status != "" {
		status = domain.RequestStatus(strings.ToLower(strings.TrimSpace(input.Status)))
		switch status {
		case domain.RequestStatusPending, domain.RequestStatusApproved, domain.RequestStatusDenied:
		default:
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "status must be pending, approved, or denied")
		}
	}

	return s.requests.List(ctx, ListRequestsQuery{
		UserID:    input.UserID,
		Direction: direction,
		Status:    status,
	})
}

func notificationTypeForStatus(status domain.RequestStatus) domain.NotificationType {
	if status == domain.RequestStatusApproved {
		return domain.NotificationTypeKnowledgeApproved
	}
	return domain.NotificationTypeKnowledgeDenied
}

func resolvedPayload(req *domain.KnowledgeRequest) map[string]any {
	payload := map[string]any{
		"requestId":   req.ID,
		"embeddingId": req.EmbeddingID,
		"status":      string(req.Status),
		"question":    req.Question,
		"respondedAt": req.RespondedAt.Format(time.RFC3339),
	}
	if req.ConversationID != nil {
		payload["conversationId"] = *req.ConversationID
	}
	if req.ResponseContent != "" {
		payload["responseContent"] = req.ResponseContent
	}
	return payload
}
