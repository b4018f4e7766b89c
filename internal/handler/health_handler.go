package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything with a health probe
type Pinger interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db     Pinger
	queue  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db, queue Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Services: make(map[string]string),
	}

	check := func(name string, p Pinger) {
		if err := p.Health(ctx); err != nil {
			h.logger.Error(name+" health check failed", slog.String("error", err.Error()))
			response.Status = "unhealthy"
			response.Services[name] = "unhealthy"
			return
		}
		response.Services[name] = "healthy"
	}

	check("database", h.db)
	check("queue", h.queue)

	if response.Status == "healthy" {
		respondSuccess(w, response)
	} else {
		respondJSON(w, http.StatusServiceUnavailable, response)
	}
}
