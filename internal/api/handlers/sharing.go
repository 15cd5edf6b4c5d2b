package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hivemesh/hivemesh/internal/api"
	"github.com/hivemesh/hivemesh/internal/api/middleware"
	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/service"
)

type SharingService interface {
	CreateRequest(ctx context.Context, input service.CreateRequestInput) (*domain.KnowledgeRequest, error)
	Respond(ctx context.Context, input service.RespondInput) (*domain.KnowledgeRequest, error)
	ListRequests(ctx context.Context, input service.ListRequestsInput) ([]*service.RequestDetail, error)
}

type SharingHandler struct {
	svc SharingService
}

func NewSharingHandler(svc SharingService) *SharingHandler {
	return &SharingHandler{svc: svc}
}

type CreateKnowledgeRequestRequest struct {
	EmbeddingID    int64  `json:"embedding_id"`
	Question       string `json:"question"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
}

type RespondRequest struct {
	RequestID       int64  `json:"request_id"`
	Decision        string `json:"decision"`
	ResponseContent string `json:"response_content,omitempty"`
}

type KnowledgeRequestResponse struct {
	ID              int64  `json:"id"`
	RequesterID     string `json:"requester_id"`
	OwnerID         string `json:"owner_id"`
	EmbeddingID     int64  `json:"embedding_id"`
	ConversationID  *int64 `json:"conversation_id,omitempty"`
	Question        string `json:"question"`
	Status          string `json:"status"`
	ResponseContent string `json:"response_content,omitempty"`
	CreatedAt       string `json:"created_at"`
	RespondedAt     string `json:"responded_at,omitempty"`
}

type RequestDetailResponse struct {
	KnowledgeRequestResponse
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	OwnerName      string `json:"owner_name"`
	OwnerEmail     string `json:"owner_email"`
	ChunkContent   string `json:"chunk_content"`
	ParentMessage  string `json:"parent_message,omitempty"`
}

func requestToResponse(req *domain.KnowledgeRequest) KnowledgeRequestResponse {
	resp := KnowledgeRequestResponse{
		ID:              req.ID,
		RequesterID:     req.RequesterID,
		OwnerID:         req.OwnerID,
		EmbeddingID:     req.EmbeddingID,
		ConversationID:  req.ConversationID,
		Question:        req.Question,
		Status:          string(req.Status),
		ResponseContent: req.ResponseContent,
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
	}
	if req.RespondedAt != nil {
		resp.RespondedAt = req.RespondedAt.Format(time.RFC3339)
	}
	return resp
}

func requestDetailToResponse(d *service.RequestDetail) RequestDetailResponse {
	return RequestDetailResponse{
		KnowledgeRequestResponse: requestToResponse(d.Request),
		RequesterName:            d.RequesterName,
		RequesterEmail:           d.RequesterEmail,
		OwnerName:                d.OwnerName,
		OwnerEmail:               d.OwnerEmail,
		ChunkContent:             d.ChunkContent,
		ParentMessage:            d.ParentMessage,
	}
}

// CreateRequest handles POST /api/v1/knowledge/requests
func (h *SharingHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateKnowledgeRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.EmbeddingID <= 0 {
		api.Error(w, http.StatusBadRequest, "embedding_id is required")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	created, err := h.svc.CreateRequest(r.Context(), service.CreateRequestInput{
		RequesterID:    identity.UserID,
		EmbeddingID:    req.EmbeddingID,
		Question:       req.Question,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, requestToResponse(created))
}

// Respond handles POST /api/v1/knowledge/requests/respond
func (h *SharingHandler) Respond(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RequestID <= 0 {
		api.Error(w, http.StatusBadRequest, "request_id is required")
		return
	}
	if req.Decision == "" {
		api.Error(w, http.StatusBadRequest, "decision is required")
		return
	}

	resolved, err := h.svc.Respond(r.Context(), service.RespondInput{
		RequestID:       req.RequestID,
		OwnerID:         identity.UserID,
		Decision:        req.Decision,
		ResponseContent: req.ResponseContent,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, requestToResponse(resolved))
}

// ListRequests handles GET /api/v1/knowledge/requests
func (h *SharingHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	details, err := h.svc.ListRequests(r.Context(), service.ListRequestsInput{
		UserID:    identity.UserID,
		Direction: r.URL.Query().Get("type"),
		Status:    r.URL.Query().Get("status"),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]RequestDetailResponse, 0, len(details))
	for _, d := range details {
		resp = append(resp, requestDetailToResponse(d))
	}

	api.Success(w, http.StatusOK, resp)
}
