package classify

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/teemow/inboxtasks/internal/gmail"
)

// RuleClassifier is the heuristic fallback classifier. It never fails and
// needs no external service, so the pipeline can always run.
type RuleClassifier struct {
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewRuleClassifier creates a rule-based classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{Now: time.Now}
}

var (
	// Senders that indicate automated mail with no action needed.
	skipSenderRe = regexp.MustCompile(`(?i)(no-?reply|do-?not-?reply|notifications?@|newsletter|mailer-daemon|postmaster@|marketing@|promo(tions)?@)`)

	// Subjects of auto-replies and out-of-office messages.
	autoReplyRe = regexp.MustCompile(`(?i)^(automatic reply|auto-?reply|out of office|ooo:)`)

	// Body markers of bulk mail.
	bulkBodyRe = regexp.MustCompile(`(?i)(unsubscribe|view (this|it) in your browser|manage (your )?(email )?preferences)`)

	// Keywords that make an email actionable.
	actionableRe = regexp.MustCompile(`(?i)\b(action required|please|review|deadline|due|reminder|follow[- ]?up|invoice|payment|submit|complete|confirm|approve|sign|renew|expir\w+|urgent|asap)\b`)

	// Keywords that indicate a meeting invitation.
	meetingRe = regexp.MustCompile(`(?i)\b(meeting|invite|invitation|agenda|call|zoom|conference|standup|sync|1:1|catch[- ]?up)\b|meet\.google\.com|teams\.microsoft\.com`)

	// Virtual meeting links double as the location.
	meetingLinkRe = regexp.MustCompile(`https?://(meet\.google\.com|[\w.]*zoom\.us|teams\.microsoft\.com)/[^\s<>"]*`)

	emailAddrRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// Classify applies the heuristic rules. The error result is always nil;
// it exists to satisfy the Classifier interface.
func (rc *RuleClassifier) Classify(_ context.Context, email gmail.Email, _ Options) (*Classification, error) {
	now := time.Now()
	if rc.Now != nil {
		now = rc.Now()
	}

	body := email.Body
	if strings.TrimSpace(body) == "" {
		body = email.Snippet
	}
	haystack := email.Subject + "\n" + body

	result := &Classification{
		Title:  CleanTitle(email.Subject),
		Notes:  truncateNotes(body),
		Engine: EngineRules,
	}

	switch {
	case skipSenderRe.MatchString(email.Sender):
		result.ShouldCreate = false
		result.Confidence = 0.8
		result.Reasoning = "automated sender, no action expected"
	case autoReplyRe.MatchString(email.Subject):
		result.ShouldCreate = false
		result.Confidence = 0.9
		result.Reasoning = "auto-reply or out-of-office message"
	case bulkBodyRe.MatchString(body) && !actionableRe.MatchString(haystack):
		result.ShouldCreate = false
		result.Confidence = 0.7
		result.Reasoning = "bulk mail markers without actionable content"
	default:
		hits := len(actionableRe.FindAllString(haystack, -1))
		result.ShouldCreate = true
		result.Confidence = 0.5 + 0.1*float64(hits)
		if result.Confidence > 0.95 {
			result.Confidence = 0.95
		}
		if hits > 0 {
			result.Reasoning = "actionable keywords found"
		} else {
			result.Reasoning = "no skip patterns matched, defaulting to task"
		}
	}

	if due, ok := extractDueDate(haystack, now); ok {
		result.Due = due
	}

	if meetingRe.MatchString(haystack) {
		meeting := &MeetingInfo{
			Summary: result.Title,
		}
		if link := meetingLinkRe.FindString(haystack); link != "" {
			meeting.Location = link
		}
		if start, ok := extractMeetingTime(haystack, now); ok {
			meeting.Start = start
			meeting.End = start.Add(time.Hour)
		}
		for _, addr := range emailAddrRe.FindAllString(body, 5) {
			if !strings.EqualFold(addr, senderAddress(email.Sender)) {
				meeting.Attendees = appendUnique(meeting.Attendees, strings.ToLower(addr))
			}
		}
		result.Meeting = meeting
	}

	return result, nil
}

var (
	dueDateRe = regexp.MustCompile(`(?i)\b(?:due(?: by| on| date:?)?|deadline(?: is|:)?|by)\s+(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:,?\s+\d{4})?)`)

	isoDateTimeRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2})?(Z|[+-]\d{2}:\d{2})?`)

	// "Jan 2 at 3pm", "January 2, 2026 at 15:00"
	dayAtTimeRe = regexp.MustCompile(`(?i)\b((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:,?\s+\d{4})?)\s+(?:at\s+)?(\d{1,2}(?::\d{2})?\s*(?:am|pm)|\d{1,2}:\d{2})\b`)
)

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
}

// extractDueDate finds an explicit due date in the text. Dates without a
// year assume the next occurrence from now.
func extractDueDate(text string, now time.Time) (time.Time, bool) {
	m := dueDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	return parseDate(m[1], now)
}

func parseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	// Month-day without a year: assume the next occurrence
	for _, layout := range []string{"Jan 2", "January 2"} {
		if t, err := time.Parse(layout, s); err == nil {
			candidate := time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if candidate.Before(now.AddDate(0, 0, -1)) {
				candidate = candidate.AddDate(1, 0, 0)
			}
			return candidate, true
		}
	}
	return time.Time{}, false
}

// extractMeetingTime finds a meeting start time, preferring RFC3339-style
// stamps over prose like "Jan 2 at 3pm".
func extractMeetingTime(text string, now time.Time) (time.Time, bool) {
	if m := isoDateTimeRe.FindString(text); m != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
			if t, err := time.Parse(layout, m); err == nil {
				return t.UTC(), true
			}
		}
	}

	if m := dayAtTimeRe.FindStringSubmatch(text); m != nil {
		day, ok := parseDate(m[1], now)
		if !ok {
			return time.Time{}, false
		}
		hour, minute, ok := parseClock(m[2])
		if !ok {
			return time.Time{}, false
		}
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}

func parseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(strings.ReplaceAll(s, " ", ""))
	pm := strings.HasSuffix(s, "pm")
	am := strings.HasSuffix(s, "am")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "pm"), "am")

	parts := strings.SplitN(s, ":", 2)
	h := 0
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return 0, 0, false
		}
		h = h*10 + int(r-'0')
	}
	m := 0
	if len(parts) == 2 {
		for _, r := range parts[1] {
			if r < '0' || r > '9' {
				return 0, 0, false
			}
			m = m*10 + int(r-'0')
		}
	}
	if pm && h < 12 {
		h += 12
	}
	if am && h == 12 {
		h = 0
	}
	if h > 23 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// senderAddress extracts the bare address from a From header like
// "Alice <alice@example.com>".
func senderAddress(from string) string {
	if m := emailAddrRe.FindString(from); m != "" {
		return m
	}
	return from
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
