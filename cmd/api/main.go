package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-auth-nosql/internal/application/auth"
	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/infrastructure/dynamo"
	"github.com/go-auth-nosql/internal/infrastructure/emailsender"
	jwtinfra "github.com/go-auth-nosql/internal/infrastructure/jwt"
	"github.com/go-auth-nosql/internal/infrastructure/memory"
	"github.com/go-auth-nosql/internal/infrastructure/mongodb"
	"github.com/go-auth-nosql/internal/infrastructure/smtp"
	"github.com/go-auth-nosql/internal/infrastructure/sns"
	"github.com/go-auth-nosql/internal/infrastructure/userdetails"
	"github.com/go-auth-nosql/internal/pkg/httpclient"
	"github.com/go-auth-nosql/internal/pkg/logger"
	transporthttp "github.com/go-auth-nosql/internal/transport/http"
	appmiddleware "github.com/go-auth-nosql/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// stores bundles the three repositories of one storage backend.
type stores struct {
	notVerified   auth.NotVerifiedUserStore
	verified      auth.VerifiedUserStore
	recoveryCodes auth.RecoveryCodeStore
	close         func(context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	zl, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	st, err := openStores(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("storage unavailable", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}

	mailer, err := newEmailSender(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("email transport unavailable", zap.String("transport", cfg.EmailTransport), zap.Error(err))
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		zl.Fatal("jwt provider", zap.Error(err))
	}

	svc := auth.NewService(auth.ServiceDeps{
		NotVerifiedRepo:  st.notVerified,
		VerifiedRepo:     st.verified,
		RecoveryCodeRepo: st.recoveryCodes,
		Mailer:           mailer,
		Profiles:         userdetails.New(httpclient.New("user-details", cfg.UserDetails, zl)),
		Tokens:           jwtProvider,
		Logger:           zl,
		ResendCooldown:   cfg.ResendCooldown,
		PublicBaseURL:    cfg.PublicBaseURL,
	})

	limiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	defer limiter.Stop()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		AuthService: svc,
		JWTProvider: jwtProvider,
		RateLimiter: limiter,
		Logger:      zl,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.StoreBackend),
			zap.String("email_transport", cfg.EmailTransport),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("forced shutdown", zap.Error(err))
	}
	if err := st.close(shutdownCtx); err != nil {
		zl.Error("close storage", zap.Error(err))
	}
	zl.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Creates the tables and TTL settings if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables, zl)
		return &stores{
			notVerified:   dynamo.NewNotVerifiedUserRepo(client, cfg.DynamoTables, cfg.NotVerifiedRetention),
			verified:      dynamo.NewVerifiedUserRepo(client, cfg.DynamoTables),
			recoveryCodes: dynamo.NewRecoveryCodeRepo(client, cfg.DynamoTables.PasswordRecoveryCodes, cfg.RecoveryCodeTTL),
			close:         func(context.Context) error { return nil },
		}, nil

	case "mongo":
		db, client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, zl)
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db, cfg.NotVerifiedRetention, cfg.RecoveryCodeTTL); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &stores{
			notVerified:   mongodb.NewNotVerifiedUserRepo(db, cfg.NotVerifiedRetention),
			verified:      mongodb.NewVerifiedUserRepo(db),
			recoveryCodes: mongodb.NewRecoveryCodeRepo(db, cfg.RecoveryCodeTTL),
			close:         client.Disconnect,
		}, nil

	case "memory":
		zl.Warn("using in-memory storage, data is lost on restart")
		s := memory.NewStore(cfg.NotVerifiedRetention, cfg.RecoveryCodeTTL)
		return &stores{
			notVerified:   s.NotVerifiedUsers(),
			verified:      s.VerifiedUsers(),
			recoveryCodes: s.RecoveryCodes(),
			close:         func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

func newEmailSender(ctx context.Context, cfg *config.Config, zl *zap.Logger) (auth.EmailSender, error) {
	switch cfg.EmailTransport {
	case "http":
		return emailsender.New(httpclient.New("email-sender", cfg.EmailSender, zl)), nil
	case "sns":
		sender, err := sns.NewSender(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case "smtp":
		return smtp.NewMailer(cfg), nil
	}
	return nil, fmt.Errorf("unknown EMAIL_TRANSPORT %q", cfg.EmailTransport)
}
