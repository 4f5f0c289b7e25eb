// Package client is a typed Go client for the talentflow HTTP API. It retries
// transient failures (503, other 5xx and network errors) with linear backoff
// and never retries a request the server rejected.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/garnizeh/talentflow/internal/apperr"
)

// Error kinds returned by the client; classify with errors.Is.
var (
	ErrNotFound         = apperr.ErrNotFound
	ErrConflict         = apperr.ErrConflict
	ErrInvalidInput     = apperr.ErrInvalidInput
	ErrValidationFailed = apperr.ErrValidationFailed
	ErrTransient        = apperr.ErrTransient

	ErrCircuitOpen = errors.New("talentflow circuit open")
)

// FieldError is one per-question failure of a rejected submission.
type FieldError = apperr.FieldError

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Message   string
	Retryable bool
	Errors    []FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("talentflow: %d %s", e.Status, e.Message)
}

// Unwrap maps the status code onto the shared error kinds.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusConflict:
		return ErrConflict
	case e.Status == http.StatusUnprocessableEntity:
		return ErrValidationFailed
	case e.Status == http.StatusBadRequest:
		return ErrInvalidInput
	case e.Retryable || e.Status >= 500:
		return ErrTransient
	}
	return nil
}

// Client wraps an http.Client and adds retries, per-attempt timeout, and a circuit breaker.
type Client struct {
	cfg    Config
	base   *url.URL
	client *http.Client

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32 // atomic flag for Close()

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for cfg.BaseURL. A nil httpClient gets a plain
// http.Client with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		base:   u,
		client: httpClient,
		sleep:  sleepCtx,
	}
	logger.Debug("talentflow: client created", slog.String("base_url", cfg.BaseURL), slog.Int("retries", cfg.Retries))
	return c, nil
}

func NewDefaultClient(cfg Config) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

// Close releases idle connections on the underlying transport when
// supported. Close is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	return nil
}

// package-level logger for pkg/client; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

// SetLogger sets the logger used by pkg/client. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) isCircuitOpen() bool {
	if c.cfg.CircuitFailureThreshold <= 0 || atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// attempt half-open: reset failures and allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if c.cfg.CircuitFailureThreshold > 0 && v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

// do sends one API call, retrying transient failures up to cfg.Retries
// times. in is JSON-encoded unless it is a []byte; out may be nil. It
// returns the final status code.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return 0, errors.New("talentflow: client closed")
	}

	var body []byte
	switch v := in.(type) {
	case nil:
	case []byte:
		body = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if c.isCircuitOpen() {
			return 0, ErrCircuitOpen
		}

		status, err := c.attempt(ctx, method, path, body, out)
		if err == nil {
			atomic.StoreInt32(&c.failures, 0)
			return status, nil
		}
		if !errors.Is(err, ErrTransient) {
			return status, err
		}

		lastErr = err
		c.recordFailure()
		logger.Warn("talentflow: transient failure",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Any("err", err))

		if attempt == c.cfg.Retries {
			break
		}
		// backoff
		if err := c.sleep(ctx, c.cfg.Backoff*time.Duration(attempt+1)); err != nil {
			return 0, err
		}
	}

	return 0, fmt.Errorf("%s %s failed after %d attempts: %w", method, path, c.cfg.Retries+1, lastErr)
}

func (c *Client) attempt(parent context.Context, method, path string, body []byte, out any) (int, error) {
	ctx := parent
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.cfg.Timeout)
		defer cancel()
	}

	rawQuery := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, rawQuery = path[:i], path[i+1:]
	}
	u := c.base.JoinPath("api", path)
	u.RawQuery = rawQuery

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Actor != "" {
		req.Header.Set("X-Actor", c.cfg.Actor)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// the caller's own cancellation is final; anything else may be retried
		if parent.Err() != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error     string       `json:"error"`
		Retryable bool         `json:"retryable"`
		Errors    []FieldError `json:"errors"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &APIError{
		Status:    resp.StatusCode,
		Message:   body.Error,
		Retryable: body.Retryable,
		Errors:    body.Errors,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
