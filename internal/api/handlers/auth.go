package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hivemesh/hivemesh/internal/api"
	"github.com/hivemesh/hivemesh/internal/api/middleware"
	"github.com/hivemesh/hivemesh/internal/domain"
)

type AuthService interface {
	CreateUser(ctx context.Context, orgID, name, email string) (*domain.User, error)
	CreateAPIKey(ctx context.Context, userID, name string) (string, error)
	RevokeAPIKey(ctx context.Context, keyID string) error
	ListAPIKeys(ctx context.Context, orgID string) ([]*domain.APIKey, error)
	ListUsers(ctx context.Context, orgID string) ([]*domain.User, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

type CreateAPIKeyResponse struct {
	Token string `json:"token"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Revoked   bool   `json:"revoked"`
	CreatedAt string `json:"created_at"`
}

// CreateUser handles POST /api/v1/users. New members join the caller's
// organization.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Email == "" {
		api.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.svc.CreateUser(r.Context(), identity.OrgID, req.Name, req.Email)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, UserResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	})
}

// ListUsers handles GET /api/v1/users
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	users, err := h.svc.ListUsers(r.Context(), identity.OrgID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{ID: u.ID, Name: u.Name, Email: u.Email})
	}

	api.Success(w, http.StatusOK, resp)
}

// CreateAPIKey handles POST /api/v1/apikeys. The plaintext token only
// appears in this response; the server stores a hash.
func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	token, err := h.svc.CreateAPIKey(r.Context(), identity.UserID, req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, CreateAPIKeyResponse{Token: token})
}

// ListAPIKeys handles GET /api/v1/apikeys
func (h *AuthHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keys, err := h.svc.ListAPIKeys(r.Context(), identity.OrgID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		resp = append(resp, APIKeyResponse{
			ID:        k.ID,
			UserID:    k.UserID,
			Name:      k.Name,
			Revoked:   k.RevokedAt != nil,
			CreatedAt: k.CreatedAt.Format(time.RFC3339),
		})
	}

	api.Success(w, http.StatusOK, resp)
}

// RevokeAPIKey handles DELETE /api/v1/apikeys/{id}
func (h *AuthHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keyID := chi.URLParam(r, "id")
	if keyID == "" {
		api.Error(w, http.StatusBadRequest, "api key id is required")
		return
	}

	if err := h.svc.RevokeAPIKey(r.Context(), keyID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
