package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hivemesh/hivemesh/internal/api"
	"github.com/hivemesh/hivemesh/internal/api/handlers"
	"github.com/hivemesh/hivemesh/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator       middleware.IdentityValidator
	RetrievalHandler    *handlers.RetrievalHandler
	SharingHandler      *handlers.SharingHandler
	ConversationHandler *handlers.ConversationHandler
	NotificationHandler *handlers.NotificationHandler
	ResourceHandler     *handlers.ResourceHandler
	AuthHandler         *handlers.AuthHandler
	EventsHandler       *handlers.EventsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Post("/retrieve", cfg.RetrievalHandler.Retrieve)

		r.Route("/knowledge/requests", func(r chi.Router) {
			r.Post("/", cfg.SharingHandler.CreateRequest)
			r.Get("/", cfg.SharingHandler.ListRequests)
			r.Post("/respond", cfg.SharingHandler.Respond)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", cfg.ConversationHandler.List)
			r.Post("/messages", cfg.ConversationHandler.AppendMessage)
			r.Get("/{id}/messages", cfg.ConversationHandler.GetMessages)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Get("/unread", cfg.NotificationHandler.CountUnread)
			r.Post("/read", cfg.NotificationHandler.MarkRead)
			r.Delete("/{id}", cfg.NotificationHandler.Delete)
		})

		r.Route("/resources", func(r chi.Router) {
			r.Post("/", cfg.ResourceHandler.Create)
			r.Get("/", cfg.ResourceHandler.List)
			r.Put("/{id}", cfg.ResourceHandler.Update)
			r.Delete("/{id}", cfg.ResourceHandler.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", cfg.AuthHandler.CreateUser)
			r.Get("/", cfg.AuthHandler.ListUsers)
		})

		r.Route("/apikeys", func(r chi.Router) {
			r.Post("/", cfg.AuthHandler.CreateAPIKey)
			r.Get("/", cfg.AuthHandler.ListAPIKeys)
			r.Delete("/{id}", cfg.AuthHandler.RevokeAPIKey)
		})

		r.Get("/events", cfg.EventsHandler.Subscribe)
	})

	return r
}
