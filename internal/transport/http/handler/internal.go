package handler

import (
	"net/http"

	"github.com/go-auth-nosql/internal/application/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// InternalHandler serves service-to-service lookups.
type InternalHandler struct {
	svc auth.Service
	log *zap.Logger
}

func NewInternalHandler(svc auth.Service, log *zap.Logger) *InternalHandler {
	return &InternalHandler{svc: svc, log: log}
}

func (h *InternalHandler) GetEmailAddress(w http.ResponseWriter, r *http.Request) {
	email, err := h.svc.GetEmailAddress(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, EmailEnvelope{Email: email})
}
