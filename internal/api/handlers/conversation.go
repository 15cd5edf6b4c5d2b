package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hivemesh/hivemesh/internal/api"
	"github.com/hivemesh/hivemesh/internal/api/middleware"
	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/service"
)

type ConversationService interface {
	AppendMessage(ctx context.Context, input service.AppendMessageInput) (*service.AppendMessageOutput, error)
	GetMessages(ctx context.Context, userID, publicID string) ([]*domain.Message, error)
	ListConversations(ctx context.Context, input service.ListConversationsInput) (*service.ListConversationsOutput, error)
}

type ConversationHandler struct {
	svc ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type AppendMessageRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Role           string `json:"role"`
	Content        string `json:"content"`
}

type ConversationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type MessageResponse struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type AppendMessageResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Message      MessageResponse      `json:"message"`
}

type ListConversationsResponse struct {
	Items   []ConversationResponse `json:"items"`
	Cursor  string                 `json:"cursor,omitempty"`
	HasMore bool                   `json:"has_more"`
}

func conversationToResponse(c *domain.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.PublicID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func messageToResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// AppendMessage handles POST /api/v1/conversations/messages
func (h *ConversationHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	role := domain.MessageRole(req.Role)
	if req.Role == "" {
		role = domain.MessageRoleUser
	}

	out, err := h.svc.AppendMessage(r.Context(), service.AppendMessageInput{
		UserID:         identity.UserID,
		OrgID:          identity.OrgID,
		ConversationID: req.ConversationID,
		Role:           role,
		Content:        req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, AppendMessageResponse{
		Conversation: conversationToResponse(out.Conversation),
		Message:      messageToResponse(out.Message),
	})
}

// GetMessages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	publicID := chi.URLParam(r, "id")
	if publicID == "" {
		api.Error(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	messages, err := h.svc.GetMessages(r.Context(), identity.UserID, publicID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, messageToResponse(m))
	}

	api.Success(w, http.StatusOK, resp)
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.svc.ListConversations(r.Context(), service.ListConversationsInput{
		UserID: identity.UserID,
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ListConversationsResponse{
		Items:   make([]ConversationResponse, 0, len(out.Items)),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	}
	for _, c := range out.Items {
		resp.Items = append(resp.Items, conversationToResponse(c))
	}

	api.Success(w, http.StatusOK, resp)
}
