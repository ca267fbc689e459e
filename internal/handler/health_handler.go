package handler

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/container"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Service   string    `json:"service"`
	Store     string    `json:"store"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Service:   "storefront",
		Store:     "ok",
	}
	status := http.StatusOK

	if err := h.container.Store.Health(ctx); err != nil {
		log.WithError(err).Warn("Store health check failed")
		response.Status = "unhealthy"
		response.Store = "unreachable"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, log, status, response)
}
