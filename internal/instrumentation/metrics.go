package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrProvider  = "provider"
	attrOutcome   = "outcome"
	attrEngine    = "engine"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Pipeline metrics
	pipelineRunsTotal   metric.Int64Counter
	pipelineRunDuration metric.Float64Histogram
	emailsFetchedTotal  metric.Int64Counter
	emailsHandledTotal  metric.Int64Counter
	tasksCreatedTotal   metric.Int64Counter
	eventsCreatedTotal  metric.Int64Counter

	// Classifier metrics
	classificationsTotal metric.Int64Counter

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthAuthTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// Pipeline Metrics
	m.pipelineRunsTotal, err = meter.Int64Counter(
		"pipeline_runs_total",
		metric.WithDescription("Total number of email processing runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline_runs_total counter: %w", err)
	}

	m.pipelineRunDuration, err = meter.Float64Histogram(
		"pipeline_run_duration_seconds",
		metric.WithDescription("Email processing run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline_run_duration_seconds histogram: %w", err)
	}

	m.emailsFetchedTotal, err = meter.Int64Counter(
		"emails_fetched_total",
		metric.WithDescription("Total number of emails fetched from the mailbox"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create emails_fetched_total counter: %w", err)
	}

	m.emailsHandledTotal, err = meter.Int64Counter(
		"emails_handled_total",
		metric.WithDescription("Total number of emails handled by the pipeline, by outcome"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create emails_handled_total counter: %w", err)
	}

	m.tasksCreatedTotal, err = meter.Int64Counter(
		"tasks_created_total",
		metric.WithDescription("Total number of tasks created, by provider"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks_created_total counter: %w", err)
	}

	m.eventsCreatedTotal, err = meter.Int64Counter(
		"calendar_events_created_total",
		metric.WithDescription("Total number of calendar events created"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_events_created_total counter: %w", err)
	}

	// Classifier Metrics
	m.classificationsTotal, err = meter.Int64Counter(
		"classifications_total",
		metric.WithDescription("Total number of email classifications, by engine and status"),
		metric.WithUnit("{classification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifications_total counter: %w", err)
	}

	// Google API Metrics
	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	// OAuth Metrics
	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of OAuth authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPipelineRun records a completed processing run with its status and duration.
// Status should be one of: "success", "error"
func (m *Metrics) RecordPipelineRun(ctx context.Context, status string, duration time.Duration) {
	if m.pipelineRunsTotal == nil || m.pipelineRunDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.pipelineRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.pipelineRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEmailsFetched records the number of emails fetched in a run.
func (m *Metrics) RecordEmailsFetched(ctx context.Context, count int) {
	if m.emailsFetchedTotal == nil {
		return // Instrumentation not initialized
	}

	m.emailsFetchedTotal.Add(ctx, int64(count))
}

// RecordEmailHandled records a single handled email with its outcome.
// Outcome should be one of: "created", "skipped", "duplicate", "error"
func (m *Metrics) RecordEmailHandled(ctx context.Context, outcome string) {
	if m.emailsHandledTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOutcome, outcome),
	}

	m.emailsHandledTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTaskCreated records a task created through the given provider.
func (m *Metrics) RecordTaskCreated(ctx context.Context, provider string) {
	if m.tasksCreatedTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrProvider, provider),
	}

	m.tasksCreatedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEventCreated records a calendar event created from a meeting email.
func (m *Metrics) RecordEventCreated(ctx context.Context) {
	if m.eventsCreatedTotal == nil {
		return // Instrumentation not initialized
	}

	m.eventsCreatedTotal.Add(ctx, 1)
}

// RecordClassification records an email classification with the engine used
// and its result status.
//
// Parameters:
//   - engine: Classification engine ("rules" or "openai")
//   - status: Result status ("success" or "error")
func (m *Metrics) RecordClassification(ctx context.Context, engine, status string) {
	if m.classificationsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrEngine, engine),
		attribute.String(attrStatus, status),
	}

	m.classificationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (gmail, calendar, tasks)
//   - operation: Operation type (list, get, create, delete, etc.)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthAuth records an OAuth authentication attempt with result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.oauthAuthTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
