package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// DefaultBaseURL is the production Graph endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// defaultTimeout bounds every outbound call so a stalled request cannot
// block a reconciliation cycle indefinitely.
const defaultTimeout = 30 * time.Second

// TokenSource supplies a bearer token for outbound requests. Satisfied by
// auth.Preferrer, which handles application/delegated selection.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// Client issues Planner task requests against the Graph REST API.
//
// All methods honor the context deadline and additionally cap each request
// at the configured timeout. Responses outside the expected set are mapped
// to the sentinel errors in errors.go.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *log.Logger
}

// Config holds Client construction options.
type Config struct {
	// BaseURL overrides the Graph endpoint (default DefaultBaseURL).
	// Tests point this at an httptest server.
	BaseURL string

	// Timeout bounds each request (default 30s).
	Timeout time.Duration

	// HTTPClient overrides the transport. Nil uses a fresh http.Client.
	HTTPClient *http.Client

	// Logger for request activity. Nil uses a stderr logger.
	Logger *log.Logger
}

// NewClient creates a Graph client that authenticates via tokens.
func NewClient(tokens TokenSource, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	// Shallow-copy a caller-supplied client so setting the timeout does
	// not reconfigure a client shared with other code.
	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		cp := *cfg.HTTPClient
		httpClient = &cp
	}
	httpClient.Timeout = timeout
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[graph] ", log.LstdFlags)
	}

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		tokens:  tokens,
		logger:  logger,
	}
}

// GetTask fetches a Planner task. If etag is non-empty it is sent as
// If-None-Match; an unchanged task returns ErrNotModified with no payload.
func (c *Client) GetTask(ctx context.Context, taskID, etag string) (*PlannerTask, error) {
	headers := map[string]string{}
	if etag != "" {
		headers["If-None-Match"] = etag
	}

	var pt PlannerTask
	if err := c.do(ctx, http.MethodGet, "/planner/tasks/"+taskID, headers, nil, &pt); err != nil {
		return nil, err
	}
	return &pt, nil
}

// CreateTask creates a new Planner task and returns the created resource,
// including its initial ETag.
func (c *Client) CreateTask(ctx context.Context, payload *TaskPayload) (*PlannerTask, error) {
	body, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode create payload: %w", err)
	}

	var pt PlannerTask
	if err := c.do(ctx, http.MethodPost, "/planner/tasks", nil, body, &pt); err != nil {
		return nil, err
	}
	return &pt, nil
}

// UpdateTask applies a partial update guarded by the supplied ETag. A stale
// ETag surfaces as ErrPreconditionFailed so the caller can refetch and
// re-evaluate instead of blindly overwriting a concurrent edit.
//
// Graph returns the updated resource when asked via Prefer; we request it
// so the caller gets the fresh ETag without a second round trip.
func (c *Client) UpdateTask(ctx context.Context, taskID, etag string, payload *TaskPayload) (*PlannerTask, error) {
	body, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode update payload: %w", err)
	}

	headers := map[string]string{
		"If-Match": etag,
		"Prefer":   "return=representation",
	}

	var pt PlannerTask
	if err := c.do(ctx, http.MethodPatch, "/planner/tasks/"+taskID, headers, body, &pt); err != nil {
		return nil, err
	}
	return &pt, nil
}

// DeleteTask removes a Planner task. Deleting an already-absent task is
// not an error (idempotent).
func (c *Client) DeleteTask(ctx context.Context, taskID, etag string) error {
	headers := map[string]string{}
	if etag != "" {
		headers["If-Match"] = etag
	}

	err := c.do(ctx, http.MethodDelete, "/planner/tasks/"+taskID, headers, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// GetTaskDetails fetches the details sub-resource (description, checklist).
func (c *Client) GetTaskDetails(ctx context.Context, taskID string) (*PlannerTaskDetails, error) {
	var details PlannerTaskDetails
	if err := c.do(ctx, http.MethodGet, "/planner/tasks/"+taskID+"/details", nil, nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// UpdateTaskDetails patches the details sub-resource, guarded by its own
// ETag (details carry a separate concurrency token from the task).
func (c *Client) UpdateTaskDetails(ctx context.Context, taskID, etag string, payload *DetailsPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode details payload: %w", err)
	}

	headers := map[string]string{"If-Match": etag}
	return c.do(ctx, http.MethodPatch, "/planner/tasks/"+taskID+"/details", headers, body, nil)
}

// do runs one authenticated request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body []byte, out any) error {
	token, err := c.tokens.BearerToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return ErrNotModified
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 500:
		return &TransientError{Op: method + " " + path, Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph: %s %s failed with HTTP %d: %s", method, path, resp.StatusCode, msg)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
