package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Health answers the liveness probe at /health-check/ping.
func Health(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	default:
		writeError(w, http.StatusNotFound, "unknown health check")
	}
}
