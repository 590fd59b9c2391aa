package gmail

import (
	"context"
	"fmt"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxtasks/internal/google"
	"github.com/teemow/inboxtasks/internal/instrumentation"
)

// Client wraps the Gmail Users service
type Client struct {
	svc     *gmail.UsersService
	account string // The account this client is associated with
	metrics *instrumentation.Metrics
}

// Account returns the account name this client is associated with
func (c *Client) Account() string {
	return c.account
}

// SetMetrics attaches a metrics recorder for API call instrumentation.
func (c *Client) SetMetrics(m *instrumentation.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// record reports one Gmail API call to the metrics recorder.
func (c *Client) record(op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(context.Background(), instrumentation.ServiceGmail, op, status, time.Since(start))
}

// NewClientForAccount creates a new Gmail client with OAuth2 authentication
// for a specific account, using the token stored by the given token store.
func NewClientForAccount(ctx context.Context, cfg google.OAuthConfig, store *google.TokenStore, account string) (*Client, error) {
	httpClient, err := cfg.HTTPClient(ctx, store, account)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s: %w", account, err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		account: account,
		metrics: &instrumentation.Metrics{},
	}, nil
}

// NewClient creates a new Gmail client for the default account
func NewClient(ctx context.Context, cfg google.OAuthConfig, store *google.TokenStore) (*Client, error) {
	return NewClientForAccount(ctx, cfg, store, "default")
}

// ListMessageIDs lists message IDs matching the query with pagination.
// It will fetch up to maxResults IDs, making multiple API calls if necessary.
func (c *Client) ListMessageIDs(q string, maxResults int64) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		remaining := maxResults - int64(len(ids))
		if remaining <= 0 {
			break
		}

		// Gmail API has a max page size of 100
		pageSize := remaining
		if pageSize > 100 {
			pageSize = 100
		}

		req := c.svc.Messages.List("me").Q(q).MaxResults(pageSize)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		start := time.Now()
		res, err := req.Do()
		c.record("messages.list", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}

		if res.NextPageToken == "" || int64(len(ids)) >= maxResults {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(ids)) > maxResults {
		ids = ids[:maxResults]
	}

	return ids, nil
}

// GetMessage retrieves a full Gmail message by ID
func (c *Client) GetMessage(id string) (*gmail.Message, error) {
	start := time.Now()
	msg, err := c.svc.Messages.Get("me", id).Format("full").Do()
	c.record("messages.get", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

// FetchEmail retrieves a message and parses it into an Email
func (c *Client) FetchEmail(id string) (*Email, error) {
	msg, err := c.GetMessage(id)
	if err != nil {
		return nil, err
	}
	email := ParseMessage(msg)
	return &email, nil
}

// Profile returns the email address of the authenticated user
func (c *Client) Profile() (string, error) {
	start := time.Now()
	profile, err := c.svc.GetProfile("me").Do()
	c.record("users.getprofile", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.EmailAddress, nil
}
