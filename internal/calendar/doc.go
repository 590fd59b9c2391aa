// Package calendar provides a client for interacting with the Google Calendar API.
//
// This package offers functionality for creating events from classified
// meeting emails, listing events in a time range, and deleting events.
// Authentication uses the shared Google OAuth2 token store, so events can
// be managed per configured account.
package calendar
