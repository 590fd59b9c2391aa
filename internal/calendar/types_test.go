package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	calendar "google.golang.org/api/calendar/v3"
)

func TestToEventSummary(t *testing.T) {
	event := &calendar.Event{
		Id:          "evt-1",
		Summary:     "Project sync",
		Description: "Quarterly planning",
		Location:    "Room 4",
		Status:      "confirmed",
		HtmlLink:    "https://calendar.google.com/event?eid=abc",
		Start: &calendar.EventDateTime{
			DateTime: "2026-04-02T10:00:00Z",
		},
		End: &calendar.EventDateTime{
			DateTime: "2026-04-02T11:00:00Z",
		},
		Creator:   &calendar.EventCreator{Email: "alice@example.com"},
		Organizer: &calendar.EventOrganizer{Email: "alice@example.com"},
		Attendees: []*calendar.EventAttendee{
			{Email: "bob@example.com", ResponseStatus: "accepted"},
		},
	}

	summary := toEventSummary(event)

	assert.Equal(t, "evt-1", summary.ID)
	assert.Equal(t, "Project sync", summary.Summary)
	assert.Equal(t, "Room 4", summary.Location)
	assert.Equal(t, time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC), summary.Start)
	assert.Equal(t, time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC), summary.End)
	assert.Equal(t, "alice@example.com", summary.Organizer)
	assert.Equal(t, "https://calendar.google.com/event?eid=abc", summary.Link)
	assert.Len(t, summary.Attendees, 1)
	assert.Equal(t, "bob@example.com", summary.Attendees[0].Email)
}

func TestToEventSummaryAllDay(t *testing.T) {
	event := &calendar.Event{
		Id: "evt-2",
		Start: &calendar.EventDateTime{
			Date: "2026-04-03",
		},
		End: &calendar.EventDateTime{
			Date: "2026-04-04",
		},
	}

	summary := toEventSummary(event)

	assert.Equal(t, time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC), summary.Start)
	assert.Equal(t, time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC), summary.End)
}
