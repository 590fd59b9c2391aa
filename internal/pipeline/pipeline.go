package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxtasks/internal/calendar"
	"github.com/teemow/inboxtasks/internal/classify"
	"github.com/teemow/inboxtasks/internal/gmail"
	"github.com/teemow/inboxtasks/internal/instrumentation"
	"github.com/teemow/inboxtasks/internal/logging"
	"github.com/teemow/inboxtasks/internal/store"
	"github.com/teemow/inboxtasks/internal/task"
)

// Mailbox is the slice of the Gmail client the pipeline needs.
type Mailbox interface {
	ListMessageIDs(q string, maxResults int64) ([]string, error)
	FetchEmail(id string) (*gmail.Email, error)
}

// EventCreator is the slice of the Calendar client the pipeline needs.
type EventCreator interface {
	CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error)
}

// Config wires the pipeline's collaborators.
type Config struct {
	Mailbox    Mailbox
	Classifier classify.Classifier
	Providers  *task.Registry
	// Calendar is optional; when nil, meeting emails produce tasks only.
	Calendar  EventCreator
	Processed *store.ProcessedStore
	History   *store.HistoryStore
	// ClassifyOptions carries user-defined categories into each run.
	ClassifyOptions classify.Options
	Logger          *slog.Logger
	Metrics         *instrumentation.Metrics
}

// Options are the per-run parameters of a processing run.
type Options struct {
	// Provider names the task backend, e.g. "google_tasks" or "todoist".
	Provider string
	// Max caps how many messages are fetched.
	Max int64
	// Query describes the Gmail search.
	Query gmail.QueryOptions
	// DryRun classifies without creating tasks or marking messages.
	DryRun bool
	// CalendarID selects the target calendar, "primary" when empty.
	CalendarID string
}

// DefaultMax is the message cap applied when Options.Max is not set.
const DefaultMax = 25

// Result summarizes a processing run.
type Result struct {
	Query            string              `json:"query"`
	Provider         string              `json:"provider"`
	DryRun           bool                `json:"dry_run"`
	TotalFound       int                 `json:"total_found"`
	Processed        int                 `json:"processed"`
	AlreadyProcessed int                 `json:"already_processed"`
	Skipped          int                 `json:"skipped"`
	Failed           int                 `json:"failed"`
	Tasks            []store.TaskRecord  `json:"tasks"`
	Events           []store.EventRecord `json:"events"`
	Errors           []string            `json:"errors,omitempty"`
}

// Processor turns matching inbox messages into tasks and calendar events.
type Processor struct {
	cfg     Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// New creates a Processor from the given configuration.
func New(cfg Config) (*Processor, error) {
	if cfg.Mailbox == nil {
		return nil, fmt.Errorf("mailbox is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if cfg.Providers == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if cfg.Processed == nil {
		return nil, fmt.Errorf("processed store is required")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("history store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	return &Processor{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Run executes one processing pass: list matching messages, skip the ones
// handled before, classify the rest, and create tasks and calendar events
// for the actionable ones. Messages are only marked processed after their
// task was created (or the classifier decided to skip them), so a failed
// message is retried on the next run.
//
// With DryRun set the run classifies and reports but creates nothing and
// marks nothing, so the same messages show up again on the next run.
func (p *Processor) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	provider, err := p.cfg.Providers.Get(opts.Provider)
	if err != nil {
		return nil, err
	}

	max := opts.Max
	if max <= 0 {
		max = DefaultMax
	}

	q := gmail.BuildQuery(opts.Query)
	logger := p.logger.With(
		logging.Operation("pipeline.run"),
		logging.Provider(provider.Name()),
		logging.Query(q),
	)

	result := &Result{
		Query:    q,
		Provider: provider.Name(),
		DryRun:   opts.DryRun,
		Tasks:    []store.TaskRecord{},
		Events:   []store.EventRecord{},
	}

	ids, err := p.cfg.Mailbox.ListMessageIDs(q, max)
	if err != nil {
		p.metrics.RecordPipelineRun(ctx, instrumentation.StatusError, time.Since(start))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	result.TotalFound = len(ids)
	p.metrics.RecordEmailsFetched(ctx, len(ids))

	var processedIDs []string

	// A cancelled context stops the loop but must not skip the persist
	// below: tasks already created at the provider have to be marked
	// processed, or the next run would create them again.
	var runErr error

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if p.cfg.Processed.IsProcessed(id) {
			result.AlreadyProcessed++
			p.metrics.RecordEmailHandled(ctx, instrumentation.OutcomeDuplicate)
			continue
		}

		outcome, err := p.handleMessage(ctx, provider, opts, q, id, result)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			p.metrics.RecordEmailHandled(ctx, instrumentation.OutcomeError)
			logger.Warn("failed to process message", logging.MessageID(id), logging.Err(err))
			continue
		}

		p.metrics.RecordEmailHandled(ctx, outcome)
		if !opts.DryRun {
			processedIDs = append(processedIDs, id)
		}
	}

	if !opts.DryRun {
		if err := p.cfg.History.AppendTasks(result.Tasks...); err != nil {
			return nil, fmt.Errorf("failed to persist task history: %w", err)
		}
		if err := p.cfg.History.AppendEvents(result.Events...); err != nil {
			return nil, fmt.Errorf("failed to persist event history: %w", err)
		}
		if err := p.cfg.Processed.MarkProcessed(processedIDs...); err != nil {
			return nil, fmt.Errorf("failed to mark messages processed: %w", err)
		}
	}

	if runErr != nil {
		logger.Warn("processing run interrupted",
			slog.Int("processed", result.Processed),
			slog.Int("total_found", result.TotalFound),
			logging.Err(runErr),
		)
		p.metrics.RecordPipelineRun(ctx, instrumentation.StatusError, time.Since(start))
		return result, runErr
	}

	logger.Info("processing run finished",
		slog.Int("total_found", result.TotalFound),
		slog.Int("processed", result.Processed),
		slog.Int("already_processed", result.AlreadyProcessed),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Bool("dry_run", opts.DryRun),
		slog.Duration(logging.KeyDuration, time.Since(start)),
	)
	p.metrics.RecordPipelineRun(ctx, instrumentation.StatusSuccess, time.Since(start))

	return result, nil
}

// handleMessage fetches, classifies, and acts on a single message. The
// returned outcome is the metrics label; errors mean the message stays
// unprocessed and is retried next run.
func (p *Processor) handleMessage(ctx context.Context, provider task.Provider, opts Options, q, id string, result *Result) (string, error) {
	email, err := p.cfg.Mailbox.FetchEmail(id)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	cls, err := p.cfg.Classifier.Classify(ctx, *email, p.cfg.ClassifyOptions)
	if err != nil {
		p.metrics.RecordClassification(ctx, "unknown", instrumentation.StatusError)
		return "", fmt.Errorf("classify: %w", err)
	}
	p.metrics.RecordClassification(ctx, cls.Engine, instrumentation.StatusSuccess)

	if !cls.ShouldCreate {
		result.Skipped++
		p.logger.Debug("message skipped",
			logging.MessageID(id),
			slog.String("reasoning", cls.Reasoning),
		)
		return instrumentation.OutcomeSkipped, nil
	}

	title := cls.Title
	if title == "" {
		title = classify.CleanTitle(email.Subject)
	}

	rec := store.TaskRecord{
		ID:        uuid.NewString(),
		MessageID: id,
		Provider:  provider.Name(),
		Title:     title,
		Notes:     cls.Notes,
		Due:       cls.Due,
		Sender:    email.Sender,
		Query:     q,
		DryRun:    opts.DryRun,
		CreatedAt: time.Now().UTC(),
	}

	if !opts.DryRun {
		created, err := provider.Create(ctx, task.Input{
			Title: title,
			Notes: cls.Notes,
			Due:   cls.Due,
		})
		if err != nil {
			return "", fmt.Errorf("create task: %w", err)
		}
		rec.TaskID = created.ID
		rec.Link = created.Link
		p.metrics.RecordTaskCreated(ctx, provider.Name())
	}

	result.Tasks = append(result.Tasks, rec)
	result.Processed++

	if cls.Meeting != nil && !cls.Meeting.Start.IsZero() && p.cfg.Calendar != nil {
		if evErr := p.createEvent(ctx, opts, id, email, cls, result); evErr != nil {
			// The task exists at this point, so the event failure is
			// reported without retrying the whole message.
			result.Errors = append(result.Errors, fmt.Sprintf("%s: create event: %v", id, evErr))
			p.logger.Warn("failed to create calendar event", logging.MessageID(id), logging.Err(evErr))
		}
	}

	return instrumentation.OutcomeCreated, nil
}

func (p *Processor) createEvent(ctx context.Context, opts Options, id string, email *gmail.Email, cls *classify.Classification, result *Result) error {
	meeting := cls.Meeting

	summary := meeting.Summary
	if summary == "" {
		summary = cls.Title
	}

	rec := store.EventRecord{
		ID:        uuid.NewString(),
		MessageID: id,
		Summary:   summary,
		Location:  meeting.Location,
		Start:     meeting.Start,
		End:       meeting.End,
		Sender:    email.Sender,
		DryRun:    opts.DryRun,
		CreatedAt: time.Now().UTC(),
	}
	if rec.End.IsZero() {
		rec.End = rec.Start.Add(calendar.DefaultEventDuration)
	}

	if !opts.DryRun {
		created, err := p.cfg.Calendar.CreateEvent(ctx, opts.CalendarID, calendar.EventInput{
			Summary:     summary,
			Description: cls.Notes,
			Location:    meeting.Location,
			Start:       meeting.Start,
			End:         meeting.End,
			Attendees:   meeting.Attendees,
		})
		if err != nil {
			return err
		}
		rec.EventID = created.ID
		rec.Link = created.Link
		p.metrics.RecordEventCreated(ctx)
	}

	result.Events = append(result.Events, rec)
	return nil
}
