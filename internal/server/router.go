package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koningschat/koningschat/internal/api/handlers"
	"github.com/koningschat/koningschat/internal/api/middleware"
)

type RouterConfig struct {
	ChatHandler    *handlers.ChatHandler
	HealthHandler  *handlers.HealthHandler
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", cfg.ChatHandler.Chat)
		r.Post("/chat/stream", cfg.ChatHandler.ChatStream)
	})

	return r
}
