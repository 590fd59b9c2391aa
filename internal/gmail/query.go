package gmail

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QueryOptions describes how to build a Gmail search query for the fetch
// pipeline. Raw takes precedence over Label; time filters are appended in
// either case.
type QueryOptions struct {
	// Raw is a custom Gmail search query. When set it replaces the
	// label-based query.
	Raw string
	// Label restricts the search to a Gmail label.
	Label string
	// Window is a relative time window like "7d" or "2m". Hour values
	// such as "24h" are rounded up to whole days because Gmail's
	// newer_than operator only accepts d, m and y units.
	Window string
	// SinceHours restricts to messages received in the last N hours.
	SinceHours int
	// Since restricts to messages received after this time.
	Since time.Time
}

// BuildQuery assembles a Gmail search query from the options.
// With nothing set the query defaults to "in:inbox".
func BuildQuery(opts QueryOptions) string {
	var parts []string

	switch {
	case opts.Raw != "":
		parts = append(parts, opts.Raw)
	case opts.Label != "":
		parts = append(parts, "label:"+opts.Label)
	}

	if opts.Window != "" {
		parts = append(parts, "newer_than:"+normalizeWindow(opts.Window))
	}
	if opts.SinceHours > 0 {
		parts = append(parts, fmt.Sprintf("after:%d", time.Now().Add(-time.Duration(opts.SinceHours)*time.Hour).Unix()))
	}
	if !opts.Since.IsZero() {
		parts = append(parts, fmt.Sprintf("after:%d", opts.Since.Unix()))
	}

	if len(parts) == 0 {
		return "in:inbox"
	}
	return strings.Join(parts, " ")
}

// normalizeWindow maps plain numbers to days so "7" behaves like "7d",
// and rounds hour windows up to whole days. Gmail's newer_than only
// accepts d, m and y suffixes; anything else is passed through.
func normalizeWindow(w string) string {
	w = strings.TrimSpace(w)
	if w == "" {
		return w
	}
	last := w[len(w)-1]
	if last >= '0' && last <= '9' {
		return w + "d"
	}
	if last == 'h' || last == 'H' {
		hours, err := strconv.Atoi(w[:len(w)-1])
		if err != nil || hours <= 0 {
			return w
		}
		days := (hours + 23) / 24
		return strconv.Itoa(days) + "d"
	}
	return w
}
