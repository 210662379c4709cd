// Package client talks to a running waypoint server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/scene"
	"github.com/lazypower/waypoint/internal/session"
)

const (
	DefaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 10 * time.Second
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Client talks to the waypoint server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty URL falls back to
// $WAYPOINT_URL, then DefaultServerURL.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("WAYPOINT_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// URL returns the server base URL.
func (c *Client) URL() string { return c.serverURL }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Message: string(data)}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil) == nil
}

// Status returns the session status of the running server.
func (c *Client) Status(ctx context.Context) (session.Status, error) {
	var resp struct {
		Session session.Status `json:"session"`
	}
	err := c.do(ctx, http.MethodGet, "/api/session", nil, &resp)
	return resp.Session, err
}

// Login selects the current user by id or username.
func (c *Client) Login(ctx context.Context, user string) error {
	return c.do(ctx, http.MethodPost, "/api/session/login", map[string]string{"user": user}, nil)
}

// Place creates a memory in front of the server's latest pose.
func (c *Client) Place(ctx context.Context, text string, photo []byte) (memory.Memory, error) {
	var m memory.Memory
	err := c.do(ctx, http.MethodPost, "/api/memories", map[string]any{"text": text, "photo": photo}, &m)
	return m, err
}

// Memories lists the current user's memories.
func (c *Client) Memories(ctx context.Context) ([]memory.Memory, error) {
	var resp struct {
		Memories []memory.Memory `json:"memories"`
	}
	err := c.do(ctx, http.MethodGet, "/api/memories", nil, &resp)
	return resp.Memories, err
}

// Clear deletes every memory of the current user.
func (c *Client) Clear(ctx context.Context) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/memories", nil, &resp)
	return resp.Removed, err
}

// Tap resolves a screen point on the server.
func (c *Client) Tap(ctx context.Context, p scene.Point) (memory.Memory, bool, error) {
	var resp struct {
		Hit    bool          `json:"hit"`
		Memory memory.Memory `json:"memory"`
	}
	err := c.do(ctx, http.MethodPost, "/api/tap", p, &resp)
	return resp.Memory, resp.Hit, err
}
