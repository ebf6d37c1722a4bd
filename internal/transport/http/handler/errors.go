package handler

import (
	"errors"
	"net/http"

	"github.com/go-auth-nosql/internal/domain"
	"go.uber.org/zap"
)

var statusByError = []struct {
	err    error
	status int
}{
	{domain.ErrDuplicateEmail, http.StatusConflict},
	{domain.ErrBadCredentials, http.StatusBadRequest},
	{domain.ErrVerificationFailed, http.StatusBadRequest},
	{domain.ErrWrongPassword, http.StatusBadRequest},
	{domain.ErrPasswordRecoveryFailed, http.StatusBadRequest},
	{domain.ErrUserNotVerified, http.StatusForbidden},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrEmailRecentlySent, http.StatusTooManyRequests},
}

// statusFor maps an auth error onto an HTTP status and a client-safe message.
// Gateway and storage failures are reported as 500 without their details.
func statusFor(err error) (int, string) {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}
	var ge *domain.GatewayError
	if errors.As(err, &ge) {
		return http.StatusInternalServerError, ge.Gateway + " is unavailable"
	}
	return http.StatusInternalServerError, "internal server error"
}

func httpError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err), zap.Bool("retryable", domain.IsRetryable(err)))
	}
	writeError(w, status, msg)
}
