package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hivemesh/hivemesh/internal/api"
	"github.com/hivemesh/hivemesh/internal/api/middleware"
	"github.com/hivemesh/hivemesh/internal/service"
)

type RetrievalService interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) (*service.RetrieveOutput, error)
}

type RetrievalHandler struct {
	svc RetrievalService
}

func NewRetrievalHandler(svc RetrievalService) *RetrievalHandler {
	return &RetrievalHandler{svc: svc}
}

type RetrieveRequest struct {
	Question string `json:"question"`
}

type KnowledgeSourceResponse struct {
	EmbeddingID int64   `json:"embedding_id"`
	Content     string  `json:"content"`
	OwnerID     string  `json:"owner_id"`
	OwnerName   string  `json:"owner_name"`
	Shared      bool    `json:"shared"`
	Distance    float64 `json:"distance"`
}

type KnowledgeSuggestionResponse struct {
	EmbeddingID int64   `json:"embedding_id"`
	OwnerID     string  `json:"owner_id"`
	OwnerName   string  `json:"owner_name"`
	OwnerEmail  string  `json:"owner_email"`
	Distance    float64 `json:"distance"`
}

type ResourceMatchResponse struct {
	EmbeddingID int64   `json:"embedding_id"`
	ResourceID  int64   `json:"resource_id"`
	Content     string  `json:"content"`
	Distance    float64 `json:"distance"`
}

type RetrieveResponse struct {
	Sources     []KnowledgeSourceResponse     `json:"sources"`
	Suggestions []KnowledgeSuggestionResponse `json:"suggestions"`
	Resources   []ResourceMatchResponse       `json:"resources"`
}

func retrieveToResponse(out *service.RetrieveOutput) *RetrieveResponse {
	resp := &RetrieveResponse{
		Sources:     make([]KnowledgeSourceResponse, 0, len(out.Sources)),
		Suggestions: make([]KnowledgeSuggestionResponse, 0, len(out.Suggestions)),
		Resources:   make([]ResourceMatchResponse, 0, len(out.Resources)),
	}
	for _, s := range out.Sources {
		resp.Sources = append(resp.Sources, KnowledgeSourceResponse{
			EmbeddingID: s.EmbeddingID,
			Content:     s.Content,
			OwnerID:     s.OwnerID,
			OwnerName:   s.OwnerName,
			Shared:      s.Shared,
			Distance:    s.Distance,
		})
	}
	for _, s := range out.Suggestions {
		resp.Suggestions = append(resp.Suggestions, KnowledgeSuggestionResponse{
			EmbeddingID: s.EmbeddingID,
			OwnerID:     s.OwnerID,
			OwnerName:   s.OwnerName,
			OwnerEmail:  s.OwnerEmail,
			Distance:    s.Distance,
		})
	}
	for _, m := range out.Resources {
		resp.Resources = append(resp.Resources, ResourceMatchResponse{
			EmbeddingID: m.EmbeddingID,
			ResourceID:  m.ResourceID,
			Content:     m.Content,
			Distance:    m.Distance,
		})
	}
	return resp
}

// Retrieve handles POST /api/v1/retrieve
func (h *RetrievalHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.svc.Retrieve(r.Context(), service.RetrieveInput{
		Question: req.Question,
		UserID:   identity.UserID,
		OrgID:    identity.OrgID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, retrieveToResponse(out))
}
