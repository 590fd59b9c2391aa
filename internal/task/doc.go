// Package task defines the provider-neutral task model and the registry
// that maps provider names from API requests onto backends.
//
// Implementations live in subpackages: googletasks wraps the Google
// Tasks API, todoist talks to the Todoist REST API. Both map the same
// Input (title, notes, optional due date) onto their own schema.
package task
