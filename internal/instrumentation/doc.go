// Package instrumentation provides OpenTelemetry instrumentation for the
// inboxtasks service.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, processing runs, and Google API calls
//   - Distributed tracing for request flows and API calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Pipeline Metrics:
//   - pipeline_runs_total: Counter of processing runs by status
//   - pipeline_run_duration_seconds: Histogram of processing run durations
//   - emails_fetched_total: Counter of emails fetched from the mailbox
//   - emails_handled_total: Counter of handled emails by outcome
//   - tasks_created_total: Counter of tasks created by provider
//   - calendar_events_created_total: Counter of calendar events created
//
// Classifier Metrics:
//   - classifications_total: Counter of classifications by engine and status
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// OAuth Authentication Metrics:
//   - oauth_auth_total: Counter of OAuth authentication events by result
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: inboxtasks)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "inboxtasks",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordHTTPRequest(ctx, "POST", "/api/fetch-emails", 200, time.Since(start))
//	recorder.RecordGoogleAPIOperation(ctx, "gmail", "list", "success", time.Since(start))
package instrumentation
