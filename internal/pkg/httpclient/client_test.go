package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string, retry time.Duration, failures uint32) *Client {
	c := New("test", config.ClientConfig{
		URL:              url,
		Timeout:          2 * time.Second,
		RetryMaxElapsed:  retry,
		BreakerFailures:  failures,
		BreakerOpenDelay: time.Minute,
	}, zap.NewNop())
	c.initialInterval = time.Millisecond
	return c
}

func TestDo_SendsJSONAndDecodesAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/internal/echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := newTestClient(srv.URL, 0, 5).Do(context.Background(), "echo", http.MethodPost, "/internal/echo", map[string]string{"msg": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echo"])
}

func TestDo_ClientErrorIsTerminalAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, time.Second, 5).Do(context.Background(), "send", http.MethodPost, "/x", map[string]string{}, nil)

	var ge *domain.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, domain.Terminal, ge.Kind)
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestDo_ServerErrorIsRetriedUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, 5*time.Second, 5).Do(context.Background(), "send", http.MethodPost, "/x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_PersistentServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, 0, 5).Do(context.Background(), "send", http.MethodGet, "/x", nil, nil)
	assert.True(t, domain.IsRetryable(err))
}

func TestDo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0, 2)
	for i := 0; i < 2; i++ {
		_ = c.Do(context.Background(), "send", http.MethodGet, "/x", nil, nil)
	}
	err := c.Do(context.Background(), "send", http.MethodGet, "/x", nil, nil)

	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0, 1)
	for i := 0; i < 3; i++ {
		_ = c.Do(context.Background(), "get", http.MethodGet, "/x", nil, nil)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_UnreachableHostIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestClient(url, 0, 5).Do(context.Background(), "send", http.MethodGet, "/x", nil, nil)
	assert.True(t, domain.IsRetryable(err))
}
