package emailsender

import (
	"context"
	"net/http"

	"github.com/go-auth-nosql/internal/domain"
	"github.com/go-auth-nosql/internal/pkg/httpclient"
)

// Client dispatches emails through the email sender service's internal API.
type Client struct {
	http *httpclient.Client
}

func New(c *httpclient.Client) *Client {
	return &Client{http: c}
}

func (c *Client) SendVerificationEmail(ctx context.Context, e domain.VerificationEmail) error {
	return c.http.Do(ctx, "send verification email", http.MethodPost, "/internal/verification", e, nil)
}

func (c *Client) SendPasswordRecoveryEmail(ctx context.Context, e domain.PasswordRecoveryEmail) error {
	return c.http.Do(ctx, "send password recovery email", http.MethodPost, "/internal/recover-password", e, nil)
}

func (c *Client) SendGeneratedPassword(ctx context.Context, e domain.GeneratedPasswordEmail) error {
	return c.http.Do(ctx, "send generated password", http.MethodPost, "/internal/password", e, nil)
}
