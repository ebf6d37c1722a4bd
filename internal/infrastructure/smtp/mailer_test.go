package smtp

import (
	"bytes"
	"context"
	"errors"
	"net/textproto"
	"testing"

	"github.com/go-auth-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSendVerificationEmail_RendersCode(t *testing.T) {
	d := &fakeDialer{}
	m := &Mailer{dialer: d, from: "noreply@example.com"}

	err := m.SendVerificationEmail(context.Background(), domain.VerificationEmail{Username: "ann", Email: "ann@x.com", Code: "123456"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	assert.Equal(t, []string{"ann@x.com"}, d.sent[0].GetHeader("To"))
	var buf bytes.Buffer
	_, err = d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "123456")
}

func TestSend_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.GatewayKind
	}{
		{"mailbox unavailable", &textproto.Error{Code: 550, Msg: "no such user"}, domain.Terminal},
		{"greylisted", &textproto.Error{Code: 451, Msg: "try again later"}, domain.Retryable},
		{"connection refused", errors.New("dial tcp: connection refused"), domain.Retryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mailer{dialer: &fakeDialer{err: tt.err}, from: "noreply@example.com"}
			err := m.SendGeneratedPassword(context.Background(), domain.GeneratedPasswordEmail{Email: "ann@x.com", Password: "Secret1!"})

			var ge *domain.GatewayError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.want, ge.Kind)
			assert.Equal(t, gatewayName, ge.Gateway)
		})
	}
}
