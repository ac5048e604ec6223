// Package api is the typed client for the FitKeeda REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
)

type Client struct {
	baseURL string
	client  *http.Client
	token   string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithToken returns a client that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type requestOptions struct {
	idempotent bool
	query      any
}

type RequestOption func(*requestOptions)

// Idempotent attaches an Idempotency-Key. Requests made under
// WithIdempotencyKey with the same key, method and path send the same header
// value; without one every request gets a fresh key.
func Idempotent() RequestOption {
	return func(o *requestOptions) { o.idempotent = true }
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey ties every create made with ctx to one logical attempt,
// such as a pending order or a wizard submission.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

func IdempotencyKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyCtx{}).(string)
	return key, ok && key != ""
}

func idempotencyKey(ctx context.Context, method, path string) string {
	key, ok := IdempotencyKeyFrom(ctx)
	if !ok {
		return uuid.NewString()
	}
	// One attempt may create several resources; each endpoint gets its own key.
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key+" "+method+" "+path)).String()
}

// Query encodes v (a struct with `url` tags) as the query string.
func Query(v any) RequestOption {
	return func(o *requestOptions) { o.query = v }
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	url := c.baseURL + path
	if o.query != nil {
		values, err := query.Values(o.query)
		if err != nil {
			return fmt.Errorf("failed to encode query: %w", err)
		}
		if encoded := values.Encode(); encoded != "" {
			url += "?" + encoded
		}
	}

	var bodyReader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if o.idempotent {
		req.Header.Set("Idempotency-Key", idempotencyKey(ctx, method, path))
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", requestID)
	}

	logger.DebugContext(ctx, "Backend request", "method", method, "path", path)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) post(ctx context.Context, path string, in, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, path, in, out, opts...)
}

func (c *Client) patch(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
