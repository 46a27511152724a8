package robotctlsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal robot control HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Command mirrors the API command model.
type Command struct {
	ID          int64  `json:"id"`
	CommandText string `json:"commandText"`
	Robot       string `json:"robot"`
	User        string `json:"user"`
}

// RobotStatus mirrors the API status snapshot.
type RobotStatus struct {
	Status   string `json:"status"`
	Position string `json:"position"`
	Task     string `json:"task"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a bearer token and stores it on the client
// for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "login", body, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// Health reports whether the API is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

// CreateCommand records a control command and returns its assigned id.
func (c *Client) CreateCommand(ctx context.Context, commandText, robot, user string) (int64, error) {
	var resp struct {
		Message   string `json:"message"`
		CommandID int64  `json:"commandId"`
	}
	body := map[string]string{"commandText": commandText, "robot": robot, "user": user}
	if err := c.do(ctx, http.MethodPost, "command", body, &resp); err != nil {
		return 0, err
	}
	return resp.CommandID, nil
}

// GetCommand fetches a command by id.
func (c *Client) GetCommand(ctx context.Context, id int64) (Command, error) {
	var resp Command
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("command?id=%d", id), nil, &resp)
	return resp, err
}

// UpdateCommand overwrites an existing command's fields, keeping its id.
func (c *Client) UpdateCommand(ctx context.Context, id int64, commandText, robot, user string) (Command, error) {
	var resp struct {
		Message        string  `json:"message"`
		UpdatedCommand Command `json:"updatedCommand"`
	}
	body := map[string]string{"commandText": commandText, "robot": robot, "user": user}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("command?id=%d", id), body, &resp)
	return resp.UpdatedCommand, err
}

// Status returns the current robot status snapshot.
func (c *Client) Status(ctx context.Context) (RobotStatus, error) {
	var resp RobotStatus
	err := c.do(ctx, http.MethodGet, "status", nil, &resp)
	return resp, err
}

// History returns all recorded commands in creation order.
func (c *Client) History(ctx context.Context) ([]Command, error) {
	var resp []Command
	err := c.do(ctx, http.MethodGet, "history", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
