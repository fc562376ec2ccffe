// Package api provides the HTTP handlers for the zspatial API
package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// HealthResponse represents the response for health check endpoints
type HealthResponse struct {
	Status string `json:"status"`
}

// Health reports liveness and readiness. Readiness drops once the process
// starts draining so load balancers stop routing new participants here.
type Health struct {
	draining atomic.Bool
}

// NewHealth creates a health reporter in the ready state
func NewHealth() *Health {
	return &Health{}
}

// SetDraining marks the process as shutting down
func (h *Health) SetDraining() {
	h.draining.Store(true)
}

// LiveHandler handles Kubernetes liveness probe requests
func (h *Health) LiveHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}

// ReadyHandler handles Kubernetes readiness probe requests
func (h *Health) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "DRAINING"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Failed to write response: %v", err)
	}
}
