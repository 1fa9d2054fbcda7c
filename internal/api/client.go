package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides HTTP access to a running daemon's API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon API at the given address. The
// address may be a bare host:port bind or a full URL; the token is sent as a
// bearer credential when non-empty.
func NewClient(address, token string) *Client {
	address = strings.TrimSpace(address)
	if address != "" && !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &Client{
		baseURL: strings.TrimRight(address, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError reports a non-2xx daemon API response.
type StatusError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("daemon API returned status %d", e.StatusCode)
}

// IsNotFound reports whether err is a daemon API 404.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// Health fetches collaborator readiness.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var report HealthReport
	err := c.get(ctx, "/api/health", nil, &report)
	return report, err
}

// Status fetches the daemon's aggregated runtime status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var status DaemonStatus
	err := c.get(ctx, "/api/status", nil, &status)
	return status, err
}

// List fetches tasks, optionally filtered to one status.
func (c *Client) List(ctx context.Context, status string) ([]TaskView, error) {
	query := url.Values{}
	if status = strings.TrimSpace(status); status != "" {
		query.Set("status", status)
	}
	var resp TaskListResponse
	if err := c.get(ctx, "/api/tasks", query, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Describe fetches a single task, nil when the daemon knows no such task.
func (c *Client) Describe(ctx context.Context, id int64) (*TaskView, error) {
	var resp TaskResponse
	err := c.get(ctx, fmt.Sprintf("/api/tasks/%d", id), nil, &resp)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// Submit enqueues a new task from the given request.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*TaskView, error) {
	var resp TaskResponse
	if err := c.send(ctx, http.MethodPost, "/api/tasks", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// Cancel requests cancellation of a task.
func (c *Client) Cancel(ctx context.Context, id int64) (CancelResult, error) {
	var result CancelResult
	err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/cancel", id), nil, nil, &result)
	return result, err
}

// Retry re-queues a failed task.
func (c *Client) Retry(ctx context.Context, id int64) (RetryResult, error) {
	var result RetryResult
	err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/retry", id), nil, nil, &result)
	return result, err
}

// Clear removes tasks, optionally restricted to one status, and reports how
// many were deleted.
func (c *Client) Clear(ctx context.Context, status string) (int64, error) {
	query := url.Values{}
	if status = strings.TrimSpace(status); status != "" {
		query.Set("status", status)
	}
	var resp ClearResponse
	if err := c.send(ctx, http.MethodPost, "/api/queue/clear", query, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Result fetches a completed task's rendered transcript in the requested
// format, returning the body and its content type.
func (c *Client) Result(ctx context.Context, id int64, format string) ([]byte, string, error) {
	query := url.Values{}
	if format = strings.TrimSpace(format); format != "" {
		query.Set("format", format)
	}
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d/result", id), query, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("daemon API request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read daemon API response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", decodeStatusError(resp.StatusCode, data)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, target any) error {
	return c.send(ctx, http.MethodGet, path, query, nil, target)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload, target any) error {
	req, err := c.newRequest(ctx, method, path, query, payload)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon API request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read daemon API response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeStatusError(resp.StatusCode, data)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode daemon API response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, payload any) (*http.Request, error) {
	if c == nil || c.baseURL == "" {
		return nil, errors.New("daemon API address is not configured")
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode daemon API request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build daemon API request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeStatusError(code int, data []byte) error {
	statusErr := &StatusError{StatusCode: code}
	var payload ErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		statusErr.Message = payload.Error
		statusErr.Kind = payload.Kind
	}
	return statusErr
}
