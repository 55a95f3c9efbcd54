// Package backend is the typed HTTP client of the toy-rental backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/toyrent/internal/storage"
)

const apiPrefix = "/api/v1"

// TokenSource provides and persists the bearer token pair
type TokenSource interface {
	Tokens(ctx context.Context) (storage.Tokens, error)
	Save(ctx context.Context, tokens storage.Tokens) error
}

// Error is returned for every non-2xx response
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the backend API
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenSource
	logger      *logrus.Logger
	refreshSkew time.Duration
	now         func() time.Time

	refreshMu sync.Mutex
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout of the underlying http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTransport sets the base transport wrapped by the auth interceptor
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = &authTransport{base: rt, client: c} }
}

// WithRefreshSkew sets how long before expiry an access token is refreshed
func WithRefreshSkew(d time.Duration) Option {
	return func(c *Client) { c.refreshSkew = d }
}

// WithClock overrides time.Now; used by tests
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client for baseURL
func New(baseURL string, tokens TokenSource, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokens:      tokens,
		logger:      logger,
		refreshSkew: 30 * time.Second,
		now:         time.Now,
	}
	c.http = &http.Client{Timeout: 30 * time.Second}
	c.http.Transport = &authTransport{base: http.DefaultTransport, client: c}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ctxKey int

const skipAuthKey ctxKey = iota

// withoutAuth marks requests that must not carry a bearer token
func withoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthKey, true)
}

func authSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipAuthKey).(bool)
	return skip
}

// do sends one JSON request. in may be nil; out may be nil to discard the body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("internal error: marshaling request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("internal error: constructing HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("making HTTP request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body, resp.Status),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding JSON response of %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts "detail" or "error" from a JSON error body, falling
// back to the trimmed body text or the HTTP status line.
func errorMessage(r io.Reader, status string) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return status
}
