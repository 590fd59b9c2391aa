package classify

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teemow/inboxtasks/internal/gmail"
)

// Classification is the outcome of deciding what an email should become.
type Classification struct {
	// ShouldCreate reports whether the email warrants a task.
	ShouldCreate bool `json:"should_create"`
	// Confidence is the classifier's certainty, 0.0 to 1.0.
	Confidence float64 `json:"confidence"`
	// Title is the generated task title, cleaned and capped at 60 chars.
	Title string `json:"title"`
	// Notes is the task body, capped at 2000 chars.
	Notes string `json:"notes"`
	// Category is the selected task category, empty when none fits.
	Category string `json:"category,omitempty"`
	// Reasoning explains the decision.
	Reasoning string `json:"reasoning,omitempty"`
	// Due is the extracted due date, zero when none was found.
	Due time.Time `json:"due,omitzero"`
	// Meeting carries detected meeting details, nil when the email is
	// not a meeting invitation.
	Meeting *MeetingInfo `json:"meeting,omitempty"`
	// Engine names the engine that produced this result. When the OpenAI
	// classifier falls back to the rules the field says so.
	Engine string `json:"engine,omitempty"`
}

// Engine names reported in Classification.Engine.
const (
	EngineRules  = "rules"
	EngineOpenAI = "openai"
)

// MeetingInfo describes a meeting detected in an email.
type MeetingInfo struct {
	Summary   string    `json:"summary"`
	Location  string    `json:"location,omitempty"`
	Start     time.Time `json:"start,omitzero"`
	End       time.Time `json:"end,omitzero"`
	Attendees []string  `json:"attendees,omitempty"`
	Category  string    `json:"category,omitempty"`
}

// Category is a user-defined bucket the classifier may assign tasks or
// events to.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Options carries per-run classification settings.
type Options struct {
	TaskCategories     []Category
	CalendarCategories []Category
}

// Classifier decides whether an email is actionable and extracts the
// fields needed to build a task or calendar event.
type Classifier interface {
	Classify(ctx context.Context, email gmail.Email, opts Options) (*Classification, error)
}

const (
	maxTitleLen = 60
	maxNotesLen = 2000
)

// CleanTitle derives a task title from an email subject: reply/forward
// prefixes removed, whitespace collapsed, capped at 60 characters.
func CleanTitle(subject string) string {
	title := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(title)
		trimmed := title
		for _, prefix := range []string{"re:", "fwd:", "fw:", "aw:"} {
			if strings.HasPrefix(lower, prefix) {
				trimmed = strings.TrimSpace(title[len(prefix):])
				break
			}
		}
		if trimmed == title {
			break
		}
		title = trimmed
	}
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		title = "Email Task"
	}
	return strings.TrimSpace(truncateRunes(title, maxTitleLen))
}

// truncateNotes caps note text at the provider-safe length.
func truncateNotes(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxNotesLen {
		return truncateRunes(s, maxNotesLen) + "..."
	}
	return s
}

// truncateRunes cuts a string to at most n runes. Slicing bytes could
// split a multibyte character and yield invalid UTF-8.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// NormalizeCategories drops entries with empty names and trims the rest.
// Inputs may come from user settings, so the shape is not trusted.
func NormalizeCategories(raw []Category) []Category {
	var out []Category
	for _, c := range raw {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		out = append(out, Category{
			Name:        name,
			Description: strings.TrimSpace(c.Description),
		})
	}
	return out
}
