// Package server provides the HTTP API for the inboxtasks application.
//
// # Key Components
//
// Server exposes the processing pipeline and the stored history over a
// chi router:
//   - /api/fetch-emails runs a processing pass (GET or POST)
//   - /api/tasks and /api/calendar-events list the creation history
//   - /api/settings reads and writes the persisted fetch defaults
//   - /authorize, /oauth2callback and /logout drive the Google OAuth flow
//
// HealthChecker serves the Kubernetes-style probes /healthz, /readyz and
// /healthz/detailed.
//
// MetricsServer serves Prometheus metrics on a dedicated port, isolating
// operational metrics from application traffic.
//
// # Security Features
//
//   - The OAuth state parameter is round-tripped through an HttpOnly
//     cookie and verified on callback (CSRF protection)
//   - Tokens are stored with owner-only file permissions and never logged
//   - Requests without a stored token get 401 rather than starting an
//     implicit authentication flow
package server
