package http

import (
	"net/http"

	"github.com/go-auth-nosql/internal/application/auth"
	"github.com/go-auth-nosql/internal/config"
	jwtinfra "github.com/go-auth-nosql/internal/infrastructure/jwt"
	"github.com/go-auth-nosql/internal/pkg/metrics"
	"github.com/go-auth-nosql/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-nosql/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps holds everything the router needs.
type Deps struct {
	AuthService auth.Service
	JWTProvider *jwtinfra.Provider
	RateLimiter *appmiddleware.RateLimiter
	Logger      *zap.Logger
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authH := handler.NewAuthHandler(deps.AuthService, deps.Logger)
	pwH := handler.NewPasswordRecoveryHandler(deps.AuthService, deps.Logger)
	internalH := handler.NewInternalHandler(deps.AuthService, deps.Logger)

	r.Get("/health-check/{action}", handler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// ── Public routes (rate limited per client IP) ───────────────────────
	r.Route("/open", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Limit)
		}
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)
		r.Post("/verify", authH.Verify)
		r.Post("/send-verification-email", authH.SendVerificationEmail)
		r.Post("/recover-password", authH.RecoverPassword)
		r.Get("/reset-password", pwH.ResetPassword)
	})

	// ── Authenticated routes ─────────────────────────────────────────────
	r.Route("/external", func(r chi.Router) {
		r.Use(appmiddleware.Auth(deps.JWTProvider, deps.Logger))
		r.Put("/change-password", authH.ChangePassword)
	})

	// ── Service-to-service routes, protected at the network level ────────
	r.Route("/internal", func(r chi.Router) {
		r.Get("/users/{userId}/email", internalH.GetEmailAddress)
	})

	return r
}
