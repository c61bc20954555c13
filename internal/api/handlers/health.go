package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/koningschat/koningschat/internal/api"
)

// Pinger checks one dependency's reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	database Pinger
	openai   Pinger
}

func NewHealthHandler(database, openai Pinger) *HealthHandler {
	return &HealthHandler{
		database: database,
		openai:   openai,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Health handles GET /health. The endpoint reports per-dependency state;
// it answers 200 even when a dependency is down so the widget can show a
// degraded notice instead of nothing.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := map[string]string{
		"database": pingState(ctx, h.database),
		"openai":   pingState(ctx, h.openai),
	}

	status := "OK"
	for _, state := range services {
		if state != "connected" {
			status = "DEGRADED"
			break
		}
	}

	api.JSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}

func pingState(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disconnected"
	}
	if err := p.Ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
