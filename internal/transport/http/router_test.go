package http

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-auth-nosql/internal/application/auth"
	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/domain"
	jwtinfra "github.com/go-auth-nosql/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAuthSvc struct {
	mock.Mock
	auth.Service
}

func (m *stubAuthSvc) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return m.Called(ctx, userID, oldPassword, newPassword).Error(0)
}

func (m *stubAuthSvc) GetEmailAddress(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func newTestRouter(t *testing.T, svc auth.Service) (http.Handler, *jwtinfra.Provider) {
	t.Helper()
	cfg := &config.Config{
		AllowedOrigins:  []string{"*"},
		TokenSecretKey:  base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")),
		TokenExpiration: time.Hour,
	}
	p, err := jwtinfra.NewProvider(cfg)
	require.NoError(t, err)
	return NewRouter(cfg, &Deps{AuthService: svc, JWTProvider: p, Logger: zap.NewNop()}), p
}

func TestRouter_HealthCheck(t *testing.T) {
	r, _ := newTestRouter(t, new(stubAuthSvc))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pong")
}

func TestRouter_Metrics(t *testing.T) {
	r, _ := newTestRouter(t, new(stubAuthSvc))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_ChangePasswordRequiresBearer(t *testing.T) {
	svc := new(stubAuthSvc)
	r, _ := newTestRouter(t, svc)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/external/change-password",
		strings.NewReader(`{"oldPassword":"Passw0rd!","newPassword":"N3wPassword!"}`)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "ChangePassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_ChangePasswordWithBearer(t *testing.T) {
	svc := new(stubAuthSvc)
	svc.On("ChangePassword", mock.Anything, "u1", "Passw0rd!", "N3wPassword!").Return(nil)
	r, p := newTestRouter(t, svc)

	token, err := p.Issue("u1", "ann@example.com")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/external/change-password",
		strings.NewReader(`{"oldPassword":"Passw0rd!","newPassword":"N3wPassword!"}`))
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestRouter_InternalEmailLookup(t *testing.T) {
	svc := new(stubAuthSvc)
	svc.On("GetEmailAddress", mock.Anything, "u1").Return("", domain.ErrUserNotFound)
	r, _ := newTestRouter(t, svc)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal/users/u1/email", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
