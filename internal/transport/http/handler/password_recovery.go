package handler

import (
	"html/template"
	"net/http"

	"github.com/go-auth-nosql/internal/application/auth"
	"go.uber.org/zap"
)

var resetPage = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Password reset</title></head>
<body>
{{if .OK}}<h1>Check your inbox</h1>
<p>A new password has been sent to your email address.</p>
{{else}}<h1>Password reset failed</h1>
<p>{{.Message}}</p>
{{end}}</body>
</html>
`))

type resetView struct {
	OK      bool
	Message string
}

// PasswordRecoveryHandler serves the link emailed by the recovery flow.
// It answers with HTML because it is opened from a mail client.
type PasswordRecoveryHandler struct {
	svc auth.Service
	log *zap.Logger
}

func NewPasswordRecoveryHandler(svc auth.Service, log *zap.Logger) *PasswordRecoveryHandler {
	return &PasswordRecoveryHandler{svc: svc, log: log}
}

func (h *PasswordRecoveryHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, code := q.Get("email"), q.Get("code")
	if email == "" || code == "" {
		h.render(w, http.StatusBadRequest, resetView{Message: "The link is incomplete."})
		return
	}

	if err := h.svc.RedeemPasswordRecovery(r.Context(), email, code); err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("password reset failed", zap.Error(err))
			msg = "Something went wrong. Try the link again later."
		} else {
			msg = "The link is invalid or has expired."
		}
		h.render(w, status, resetView{Message: msg})
		return
	}
	h.render(w, http.StatusOK, resetView{OK: true})
}

func (h *PasswordRecoveryHandler) render(w http.ResponseWriter, status int, v resetView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := resetPage.Execute(w, v); err != nil {
		h.log.Error("render reset page", zap.Error(err))
	}
}
