// Package googletasks implements the Google Tasks backend for the task
// provider interface.
//
// Tasks are created in a dedicated task list (default "Email Tasks")
// which is found or created on first use. Google Tasks stores due dates
// with date precision only; the time of day is dropped by the API.
package googletasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"github.com/teemow/inboxtasks/internal/google"
	"github.com/teemow/inboxtasks/internal/instrumentation"
	"github.com/teemow/inboxtasks/internal/task"
)

// ProviderName is the id this backend registers under.
const ProviderName = "google_tasks"

// DefaultListTitle is the task list used when none is configured.
const DefaultListTitle = "Email Tasks"

// Client creates tasks through the Google Tasks API.
type Client struct {
	svc       *tasks.Service
	listTitle string
	metrics   *instrumentation.Metrics

	mu     sync.Mutex
	listID string // resolved lazily on first create
}

// NewClient creates a Google Tasks client for the given account using
// the shared OAuth token store.
func NewClient(ctx context.Context, cfg google.OAuthConfig, store *google.TokenStore, account, listTitle string) (*Client, error) {
	httpClient, err := cfg.HTTPClient(ctx, store, account)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s: %w", account, err)
	}

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Tasks service: %w", err)
	}

	if listTitle == "" {
		listTitle = DefaultListTitle
	}

	return &Client{
		svc:       svc,
		listTitle: listTitle,
		metrics:   &instrumentation.Metrics{},
	}, nil
}

// SetMetrics attaches a metrics recorder for API call instrumentation.
func (c *Client) SetMetrics(m *instrumentation.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// record reports one Tasks API call to the metrics recorder.
func (c *Client) record(ctx context.Context, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceTasks, op, status, time.Since(start))
}

// Name implements task.Provider.
func (c *Client) Name() string {
	return ProviderName
}

// Create implements task.Provider. The task lands in the configured
// task list, which is created when it does not exist yet.
func (c *Client) Create(ctx context.Context, input task.Input) (*task.Created, error) {
	listID, err := c.ensureList(ctx)
	if err != nil {
		return nil, err
	}

	t := &tasks.Task{
		Title: input.Title,
		Notes: input.Notes,
	}
	if !input.Due.IsZero() {
		t.Due = input.Due.Format(time.RFC3339)
	}

	start := time.Now()
	created, err := c.svc.Tasks.Insert(listID, t).Context(ctx).Do()
	c.record(ctx, "tasks.insert", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return &task.Created{
		ID:   created.Id,
		Link: created.SelfLink,
	}, nil
}

// ensureList resolves the configured task list id, creating the list if
// necessary. The id is cached for the lifetime of the client.
func (c *Client) ensureList(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listID != "" {
		return c.listID, nil
	}

	start := time.Now()
	list, err := c.svc.Tasklists.List().Context(ctx).Do()
	c.record(ctx, "tasklists.list", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to list task lists: %w", err)
	}
	for _, tl := range list.Items {
		if tl.Title == c.listTitle {
			c.listID = tl.Id
			return c.listID, nil
		}
	}

	start = time.Now()
	created, err := c.svc.Tasklists.Insert(&tasks.TaskList{Title: c.listTitle}).Context(ctx).Do()
	c.record(ctx, "tasklists.insert", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to create task list %q: %w", c.listTitle, err)
	}
	c.listID = created.Id
	return c.listID, nil
}
