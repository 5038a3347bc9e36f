// Package storeclient talks to a remote task store over its HTTP API.
//
// The store encodes tasks as positional tuples [id, title, lat, lng]. That
// shape is decoded here and never leaves the package.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// DefaultTimeout bounds a request when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// Client implements ports.TaskStore against the store's HTTP API.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a client for the store at baseURL (e.g. "http://localhost:5000").
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "taskpin-storeclient",
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

// ListTasks fetches every task. Malformed payloads count as store failures.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	status, body, err := c.do(ctx, fasthttp.MethodGet, "/tasks", nil)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, statusError("GET /tasks", status, body)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("GET /tasks: decode: %w: %v", domain.ErrStoreUnavailable, err)
	}
	tasks := make([]domain.Task, 0, len(rows))
	for i, raw := range rows {
		t, err := decodeTuple(raw)
		if err != nil {
			return nil, fmt.Errorf("GET /tasks: row %d: %w: %v", i, domain.ErrStoreUnavailable, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

type createRequest struct {
	Title string  `json:"title"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type createResponse struct {
	Message string          `json:"message"`
	Task    json.RawMessage `json:"task,omitempty"`
}

// CreateTask validates input locally, then posts it. If the store does not
// echo the created task, the returned Task has a zero ID.
func (c *Client) CreateTask(ctx context.Context, title string, location *domain.GeoPoint) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, fmt.Errorf("title is required: %w", domain.ErrInvalidInput)
	}
	if location == nil {
		return domain.Task{}, fmt.Errorf("location is required: %w", domain.ErrInvalidInput)
	}
	if !location.Valid() {
		return domain.Task{}, fmt.Errorf("location %s out of range: %w", *location, domain.ErrInvalidInput)
	}

	payload, err := json.Marshal(createRequest{Title: title, Lat: location.Lat, Lng: location.Lon})
	if err != nil {
		return domain.Task{}, err
	}
	status, body, err := c.do(ctx, fasthttp.MethodPost, "/add", payload)
	if err != nil {
		return domain.Task{}, err
	}
	switch {
	case status == fasthttp.StatusBadRequest:
		return domain.Task{}, fmt.Errorf("POST /add: %w: %s", domain.ErrInvalidInput, strings.TrimSpace(string(body)))
	case status < 200 || status >= 300:
		return domain.Task{}, statusError("POST /add", status, body)
	}

	task := domain.Task{Title: title, Location: *location}
	var resp createResponse
	if json.Unmarshal(body, &resp) == nil && len(resp.Task) > 0 && !bytes.Equal(resp.Task, []byte("null")) {
		if echoed, err := decodeTuple(resp.Task); err == nil {
			task = echoed
		}
	}
	return task, nil
}

// DeleteTask removes a task. A 404 means it is already gone and is success.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	path := "/delete/" + strconv.FormatInt(id, 10)
	status, body, err := c.do(ctx, fasthttp.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if status == fasthttp.StatusNotFound || (status >= 200 && status < 300) {
		return nil
	}
	return statusError("DELETE "+path, status, body)
}

// do performs one request bounded by the earlier of the context deadline and
// the client timeout. fasthttp cannot abort a request mid-flight, so a
// cancelled context is only honoured before the request is sent.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w: %v", method, path, domain.ErrStoreUnavailable, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w: %v", method, path, domain.ErrStoreUnavailable, err)
	}

	out := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), out, nil
}

func statusError(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("%s: %w: status %d: %s", op, domain.ErrStoreUnavailable, status, msg)
}

// decodeTuple parses [id, title, lat, lng].
func decodeTuple(raw json.RawMessage) (domain.Task, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Task{}, err
	}
	if len(fields) != 4 {
		return domain.Task{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	var t domain.Task
	if err := json.Unmarshal(fields[0], &t.ID); err != nil {
		return domain.Task{}, fmt.Errorf("id: %w", err)
	}
	if err := json.Unmarshal(fields[1], &t.Title); err != nil {
		return domain.Task{}, fmt.Errorf("title: %w", err)
	}
	if err := json.Unmarshal(fields[2], &t.Location.Lat); err != nil {
		return domain.Task{}, fmt.Errorf("lat: %w", err)
	}
	if err := json.Unmarshal(fields[3], &t.Location.Lon); err != nil {
		return domain.Task{}, fmt.Errorf("lng: %w", err)
	}
	return t, nil
}
