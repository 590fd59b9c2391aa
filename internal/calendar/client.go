package calendar

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/inboxtasks/internal/google"
	"github.com/teemow/inboxtasks/internal/instrumentation"
)

// DefaultEventDuration is used when an event has no explicit end time.
const DefaultEventDuration = time.Hour

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
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

// record reports one Calendar API call to the metrics recorder.
func (c *Client) record(ctx context.Context, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, op, status, time.Since(start))
}

// NewClientForAccount creates a new Calendar client with OAuth2 authentication
// for a specific account. The OAuth token is read from the token store.
func NewClientForAccount(ctx context.Context, cfg google.OAuthConfig, store *google.TokenStore, account string) (*Client, error) {
	httpClient, err := cfg.HTTPClient(ctx, store, account)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s: %w", account, err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:     svc,
		account: account,
		metrics: &instrumentation.Metrics{},
	}, nil
}

// CreateEvent creates a new calendar event
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	end := input.End
	if end.IsZero() {
		end = input.Start.Add(DefaultEventDuration)
	}
	if input.TimeZone == "" {
		input.TimeZone = "UTC"
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
	}

	if len(input.Attendees) > 0 {
		var attendees []*calendar.EventAttendee
		for _, email := range input.Attendees {
			attendees = append(attendees, &calendar.EventAttendee{
				Email: email,
			})
		}
		event.Attendees = attendees
	}

	start := time.Now()
	created, err := c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	c.record(ctx, "events.insert", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	summary := toEventSummary(created)
	return &summary, nil
}

// ListEvents lists events in a calendar within a time range
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, query string) ([]EventSummary, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	call := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	if query != "" {
		call = call.Q(query)
	}

	start := time.Now()
	events, err := call.Do()
	c.record(ctx, "events.list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var summaries []EventSummary
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}

	return summaries, nil
}

// GetEvent retrieves a specific event by ID
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*EventSummary, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	start := time.Now()
	event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	c.record(ctx, "events.get", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	summary := toEventSummary(event)
	return &summary, nil
}

// DeleteEvent deletes a calendar event
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if calendarID == "" {
		calendarID = "primary"
	}

	start := time.Now()
	err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	c.record(ctx, "events.delete", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
