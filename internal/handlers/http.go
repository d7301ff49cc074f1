package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// HTTPHandler handles basic HTTP endpoints
type HTTPHandler struct {
	version string
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(version string) *HTTPHandler {
	return &HTTPHandler{version: version}
}

// SetupRoutes configures basic HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
}

// handleHealth returns a simple health check response
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := map[string]string{
		"status":  "ok",
		"version": h.version,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}
