// Package todoist implements the Todoist backend for the task provider
// interface using the Todoist REST v2 API.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teemow/inboxtasks/internal/task"
)

// ProviderName is the id this backend registers under.
const ProviderName = "todoist"

// DefaultEndpoint is the Todoist REST v2 task creation endpoint.
const DefaultEndpoint = "https://api.todoist.com/rest/v2/tasks"

// Error is returned when the Todoist API responds with a non-2xx status.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("todoist API returned status %d: %s", e.StatusCode, e.Body)
}

// Client creates tasks through the Todoist REST API.
type Client struct {
	apiToken   string
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Todoist client authenticated with the given API
// token.
func NewClient(apiToken string, opts ...Option) (*Client, error) {
	if apiToken == "" {
		return nil, fmt.Errorf("todoist API token is required")
	}
	c := &Client{
		apiToken: apiToken,
		endpoint: DefaultEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name implements task.Provider.
func (c *Client) Name() string {
	return ProviderName
}

type createRequest struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	DueDatetime string `json:"due_datetime,omitempty"`
}

type createResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Create implements task.Provider.
func (c *Client) Create(ctx context.Context, input task.Input) (*task.Created, error) {
	reqBody := createRequest{
		Content:     input.Title,
		Description: input.Notes,
	}
	if !input.Due.IsZero() {
		reqBody.DueDatetime = input.Due.UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("todoist API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	var created createResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &task.Created{
		ID:   created.ID,
		Link: created.URL,
	}, nil
}
