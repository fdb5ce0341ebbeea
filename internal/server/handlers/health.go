package handlers

import (
	"context"
	"runtime"
)

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	GoVersion string `json:"go_version"`
	Documents int    `json:"documents"`
}

// HealthHandler reports liveness.
type HealthHandler struct {
	svc *Services
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc *Services) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Health returns the health status of the server.
func (h *HealthHandler) Health(ctx context.Context, req HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{
		Status:    "ok",
		Version:   h.svc.Version,
		GoVersion: runtime.Version(),
		Documents: len(h.svc.Store.Paths()),
	}, nil
}
