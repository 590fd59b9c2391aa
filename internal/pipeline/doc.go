// Package pipeline implements the email-to-task processing flow.
//
// A run lists inbox messages matching a Gmail search query, drops the
// ones recorded in the processed store, classifies the remainder, and
// creates a task (and, for meeting invitations, a calendar event) for
// each actionable email. Every handled message id is recorded so the
// next run is idempotent: re-fetching the same messages is a no-op.
package pipeline
