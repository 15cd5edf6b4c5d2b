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

type ResourceService interface {
	Create(ctx context.Context, input service.CreateResourceInput) (*domain.Resource, error)
	Update(ctx context.Context, input service.UpdateResourceInput) (*domain.Resource, error)
	SoftDelete(ctx context.Context, resourceID int64, orgID string) error
	HardDelete(ctx context.Context, resourceID int64, orgID string) error
	List(ctx context.Context, orgID string) ([]*domain.Resource, error)
}

type ResourceHandler struct {
	svc ResourceService
}

func NewResourceHandler(svc ResourceService) *ResourceHandler {
	return &ResourceHandler{svc: svc}
}

type CreateResourceRequest struct {
	Content string `json:"content"`
}

type UpdateResourceRequest struct {
	Content string `json:"content"`
}

type ResourceResponse struct {
	ID        int64  `json:"id"`
	OrgID     string `json:"org_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func resourceToResponse(res *domain.Resource) ResourceResponse {
	return ResourceResponse{
		ID:        res.ID,
		OrgID:     res.OrgID,
		UserID:    res.UserID,
		Content:   res.Content,
		CreatedAt: res.CreatedAt.Format(time.RFC3339),
		UpdatedAt: res.UpdatedAt.Format(time.RFC3339),
	}
}

func resourceID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Create handles POST /api/v1/resources
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateResourceInput{
		OrgID:   identity.OrgID,
		UserID:  identity.UserID,
		Content: req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, resourceToResponse(created))
}

// Update handles PUT /api/v1/resources/{id}
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := resourceID(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid resource id")
		return
	}

	var req UpdateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	updated, err := h.svc.Update(r.Context(), service.UpdateResourceInput{
		ResourceID: id,
		OrgID:      identity.OrgID,
		Content:    req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resourceToResponse(updated))
}

// Delete handles DELETE /api/v1/resources/{id}. Deletion is soft by
// default; purge=true removes the row and its chunks for good.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := resourceID(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid resource id")
		return
	}

	var err error
	if r.URL.Query().Get("purge") == "true" {
		err = h.svc.HardDelete(r.Context(), id, identity.OrgID)
	} else {
		err = h.svc.SoftDelete(r.Context(), id, identity.OrgID)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// List handles GET /api/v1/resources
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resources, err := h.svc.List(r.Context(), identity.OrgID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]ResourceResponse, 0, len(resources))
	for _, res := range resources {
		resp = append(resp, resourceToResponse(res))
	}

	api.Success(w, http.StatusOK, resp)
}
