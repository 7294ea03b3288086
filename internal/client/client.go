// Package client talks to the chat API over HTTP and keeps a reconciled view
// of one thread while generations stream in.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/service"
)

const userHeader = "X-User-ID"

// Client is a thin HTTP client for the /api/v1 surface.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Streaming requests must
// not be subject to a client-wide timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUser sets the X-User-ID sent with every request.
func WithUser(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// New creates a client for the server at baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response. It unwraps to the matching sentinel from
// the errors package, so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return app_errors.ErrValidation
	case http.StatusNotFound:
		return app_errors.ErrNotFound
	case http.StatusForbidden:
		return app_errors.ErrPermission
	case http.StatusConflict:
		return app_errors.ErrConflict
	case http.StatusTooManyRequests:
		return app_errors.ErrRateLimited
	case http.StatusBadGateway:
		return app_errors.ErrProvider
	default:
		return app_errors.ErrInternal
	}
}

// Stream is an open SSE response.
type Stream struct {
	body   io.ReadCloser
	reader *sseReader
}

// Next returns the next frame, or io.EOF when the server closed the stream.
func (s *Stream) Next() (model.StreamEvent, error) {
	for {
		_, data, err := s.reader.ReadEvent()
		if err != nil {
			return model.StreamEvent{}, err
		}
		var ev model.StreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return model.StreamEvent{}, fmt.Errorf("malformed frame %q: %w", data, err)
		}
		if ev.Type == "" {
			continue
		}
		return ev, nil
	}
}

// Close detaches from the stream. The generation keeps running on the server.
func (s *Stream) Close() error {
	return s.body.Close()
}

// --- Generation ---

// Chat submits a message and returns the frame stream of its generation.
func (c *Client) Chat(ctx context.Context, req *service.ChatRequest) (*Stream, error) {
	return c.stream(ctx, http.MethodPost, "/chat", req)
}

// Resume re-attaches to the generation streaming in a thread.
func (c *Client) Resume(ctx context.Context, threadID string) (*Stream, error) {
	return c.stream(ctx, http.MethodGet, "/chat?threadId="+url.QueryEscape(threadID), nil)
}

// Stop stops a generation, persisting the content the caller had rendered.
func (c *Client) Stop(ctx context.Context, req *service.StopRequest) error {
	return c.do(ctx, http.MethodPost, "/chat/stop", req, nil)
}

// --- Threads ---

func (c *Client) Threads(ctx context.Context) ([]*model.Thread, error) {
	var threads []*model.Thread
	err := c.do(ctx, http.MethodGet, "/threads", nil, &threads)
	return threads, err
}

func (c *Client) Messages(ctx context.Context, threadID string) ([]model.Message, error) {
	var messages []model.Message
	err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID)+"/messages", nil, &messages)
	return messages, err
}

func (c *Client) Truncate(ctx context.Context, threadID string, req *service.TruncateRequest) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/truncate", req, &resp)
	return resp.Deleted, err
}

func (c *Client) Branch(ctx context.Context, threadID, messageID string) (*model.Thread, error) {
	var thread model.Thread
	body := map[string]string{"messageId": messageID}
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/branch", body, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// --- Transport ---

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(userHeader, c.userID)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) stream(ctx context.Context, method, path string, body interface{}) (*Stream, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeError(resp)
	}
	return &Stream{body: resp.Body, reader: newSSEReader(resp.Body)}, nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
