package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/textproto"

	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/domain"
	"github.com/go-auth-nosql/internal/pkg/metrics"
	"gopkg.in/gomail.v2"
)

const gatewayName = "smtp"

var (
	verificationTmpl = template.Must(template.New("verification").Parse(
		`<p>Hi {{.Username}},</p><p>Your verification code is <b>{{.Code}}</b>.</p>`))
	recoveryTmpl = template.Must(template.New("recovery").Parse(
		`<p>Someone asked to reset the password for {{.Email}}.</p><p><a href="{{.Link}}">Reset my password</a></p><p>If it was not you, ignore this email.</p>`))
	passwordTmpl = template.Must(template.New("password").Parse(
		`<p>Hi {{.Username}},</p><p>Your new password is <b>{{.Password}}</b>. Change it after you log in.</p>`))
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer delivers auth emails directly over SMTP.
type Mailer struct {
	dialer dialer
	from   string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.SMTPFrom,
	}
}

func (m *Mailer) SendVerificationEmail(_ context.Context, e domain.VerificationEmail) error {
	return m.send("send verification email", e.Email, "Verify your email address", verificationTmpl, e)
}

func (m *Mailer) SendPasswordRecoveryEmail(_ context.Context, e domain.PasswordRecoveryEmail) error {
	return m.send("send password recovery email", e.Email, "Password recovery", recoveryTmpl, e)
}

func (m *Mailer) SendGeneratedPassword(_ context.Context, e domain.GeneratedPasswordEmail) error {
	return m.send("send generated password", e.Email, "Your new password", passwordTmpl, e)
}

func (m *Mailer) send(op, to, subject string, tmpl *template.Template, data any) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return m.fail(op, domain.Terminal, fmt.Errorf("render %s: %w", tmpl.Name(), err))
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return m.fail(op, classify(err), err)
	}
	metrics.RecordGateway(gatewayName, "ok")
	return nil
}

// classify maps permanent SMTP replies (5xx) to terminal failures. Transient
// replies (4xx) and connection problems may succeed on a later attempt.
func classify(err error) domain.GatewayKind {
	var tpe *textproto.Error
	if errors.As(err, &tpe) && tpe.Code >= 500 {
		return domain.Terminal
	}
	return domain.Retryable
}

func (m *Mailer) fail(op string, kind domain.GatewayKind, err error) error {
	metrics.RecordGateway(gatewayName, kind.String())
	return &domain.GatewayError{Gateway: gatewayName, Op: op, Kind: kind, Err: err}
}
