package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/domain"
	"github.com/go-auth-nosql/internal/pkg/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultBreakerFailures = 5

// StatusError is a non-2xx answer from the remote service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client is a JSON-over-HTTP client for one remote service. 5xx answers and
// transport failures are retried with exponential backoff and feed a circuit
// breaker. 4xx answers fail immediately as terminal errors.
type Client struct {
	name            string
	baseURL         string
	http            *http.Client
	breaker         *gobreaker.CircuitBreaker
	retryMaxElapsed time.Duration
	initialInterval time.Duration
	log             *zap.Logger
}

func New(name string, cfg config.ClientConfig, log *zap.Logger) *Client {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.StatusCode < 500)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Client{
		name:            name,
		baseURL:         cfg.URL,
		http:            &http.Client{Transport: tr, Timeout: cfg.Timeout},
		breaker:         gobreaker.NewCircuitBreaker(st),
		retryMaxElapsed: cfg.RetryMaxElapsed,
		initialInterval: 100 * time.Millisecond,
		log:             log,
	}
}

// Do sends a request to baseURL+path. A non-nil body is sent as JSON and a
// non-nil out receives the decoded JSON answer. Every failure is a *domain.GatewayError.
func (c *Client) Do(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return c.fail(op, domain.Terminal, fmt.Errorf("marshal request: %w", err))
		}
		payload = b
	}

	operation := func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.roundTrip(ctx, method, path, payload, out)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(&domain.GatewayError{Gateway: c.name, Op: op, Kind: domain.Retryable, Err: err})
		}
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < 500 {
			return backoff.Permanent(&domain.GatewayError{Gateway: c.name, Op: op, Kind: domain.Terminal, Err: err})
		}
		c.log.Debug("remote call failed, retrying", zap.String("gateway", c.name), zap.String("op", op), zap.Error(err))
		return &domain.GatewayError{Gateway: c.name, Op: op, Kind: domain.Retryable, Err: err}
	}

	err := backoff.Retry(operation, backoff.WithContext(c.backOff(), ctx))
	if err == nil {
		metrics.RecordGateway(c.name, "ok")
		return nil
	}
	var ge *domain.GatewayError
	if errors.As(err, &ge) {
		metrics.RecordGateway(c.name, ge.Kind.String())
		return ge
	}
	return c.fail(op, domain.Retryable, err)
}

func (c *Client) backOff() backoff.BackOff {
	if c.retryMaxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxElapsedTime = c.retryMaxElapsed
	return b
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) fail(op string, kind domain.GatewayKind, err error) error {
	metrics.RecordGateway(c.name, kind.String())
	return &domain.GatewayError{Gateway: c.name, Op: op, Kind: kind, Err: err}
}
