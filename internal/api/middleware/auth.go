package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hivemesh/hivemesh/internal/api"
	"github.com/hivemesh/hivemesh/internal/service"
)

type contextKey string

const IdentityKey contextKey = "identity"

// IdentityValidator resolves an API token to the caller's identity.
type IdentityValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (*service.Identity, error)
}

// APIKeyAuth authenticates requests with a bearer API key and puts the
// resolved identity into the request context. WebSocket clients cannot
// set headers, so a token in the api_key query parameter is accepted too.
func APIKeyAuth(validator IdentityValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("api_key")
			}
			if token == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			identity, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			// Outer middleware (access log, sentry) runs with the parent
			// context, so the identity is echoed onto request headers too.
			r.Header.Set("X-Org-ID", identity.OrgID)
			r.Header.Set("X-User-ID", identity.UserID)

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// GetIdentity returns the authenticated identity from context, or nil.
func GetIdentity(ctx context.Context) *service.Identity {
	identity, _ := ctx.Value(IdentityKey).(*service.Identity)
	return identity
}

// GetUserID returns the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.UserID
	}
	return ""
}

// GetOrgID returns the authenticated organization ID from context.
func GetOrgID(ctx context.Context) string {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.OrgID
	}
	return ""
}
