package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/lms-progress/internal/data/repos/options"
	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/jobs/runtime"
	"github.com/yungbote/lms-progress/internal/observability"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/realtime/bus"
)

const (
	Hook = "sensei_lms_migration_job"

	StatusOption      = "sensei_migration_job_status"
	StartedAtOption   = "sensei_migration_job_started_at"
	CompletedAtOption = "sensei_migration_job_completed_at"
	ErrorsOption      = "sensei_migration_job_errors"

	CompleteEvent = "progress_migration_complete"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// ActionScheduler is the deferred-action capability the chain runs on.
type ActionScheduler interface {
	ScheduleSingleAction(ctx context.Context, hook string, args any, allowDuplicate bool) (uuid.UUID, error)
	GetScheduledActions(ctx context.Context, filter actions.Filter) ([]uuid.UUID, error)
	Unschedule(ctx context.Context, hook string, args any) (int64, error)
	OnFailure(fn actions.FailureListener)
	Registry() *runtime.Registry
}

type jobArgs struct {
	Name string `json:"name"`
}

// JobScheduler runs registered migrations one after another, one batch per
// scheduled action, and tracks the chain's status in the options store.
type JobScheduler struct {
	queue    ActionScheduler
	opts     options.Store
	registry *Registry
	events   bus.Bus
	// syncEnabled gates advancing past a finished job.
	syncEnabled func() bool
	log         *logger.Logger
	tracer      trace.Tracer
	now         func() time.Time

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobScheduler(queue ActionScheduler, opts options.Store, registry *Registry, events bus.Bus, syncEnabled func() bool, baseLog *logger.Logger) *JobScheduler {
	if syncEnabled == nil {
		syncEnabled = func() bool { return true }
	}
	return &JobScheduler{
		queue:       queue,
		opts:        opts,
		registry:    registry,
		events:      events,
		syncEnabled: syncEnabled,
		log:         baseLog.With("component", "MigrationJobScheduler"),
		tracer:      otel.Tracer(migrationTracerName),
		now:         time.Now,
		jobs:        map[string]*Job{},
	}
}

// Init registers the hook handler and the failure listener.
func (s *JobScheduler) Init() error {
	if err := s.queue.Registry().Register(runtime.HandlerFunc{Name: Hook, Fn: s.handle}); err != nil {
		return err
	}
	s.queue.OnFailure(s.onActionFailure)
	return nil
}

func (s *JobScheduler) handle(c *runtime.Context) error {
	name := c.String("name")
	if name == "" {
		return fmt.Errorf("migration action %s: missing job name", c.ActionID())
	}
	return s.RunJob(c.Ctx, name)
}

func (s *JobScheduler) onActionFailure(ctx context.Context, f actions.Failure) {
	if f.Action == nil || f.Action.Hook != Hook {
		return
	}
	msg := f.Err.Error()
	if f.Kind == actions.FailureUnexpectedShutdown {
		msg = fmt.Sprintf("Unexpected shutdown in action %s: %s", f.Action.ID, msg)
	}
	if err := s.Fail(context.WithoutCancel(ctx), msg); err != nil {
		s.log.Error("Recording migration failure failed", "action_id", f.Action.ID, "error", err)
	}
}

// Schedule resets any previous run and queues the first job.
func (s *JobScheduler) Schedule(ctx context.Context) error {
	first := s.registry.First()
	if first == "" {
		return errors.New("no migrations registered")
	}
	if err := s.ClearState(ctx); err != nil {
		return err
	}
	_, err := s.scheduleJob(ctx, first)
	return err
}

func (s *JobScheduler) scheduleJob(ctx context.Context, name string) (uuid.UUID, error) {
	return s.queue.ScheduleSingleAction(ctx, Hook, jobArgs{Name: name}, false)
}

func (s *JobScheduler) job(name string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok && !j.IsComplete() {
		return j, nil
	}
	m, err := s.registry.Build(name)
	if err != nil {
		return nil, err
	}
	j := NewJob(m)
	s.jobs[name] = j
	return j, nil
}

// RunJob runs one batch of name and decides what runs next.
func (s *JobScheduler) RunJob(ctx context.Context, name string) error {
	ctx, span := s.tracer.Start(ctx, "migration.run_job", trace.WithAttributes(attribute.String("migration.job", name)))
	defer span.End()

	status, err := s.Status(ctx)
	if err != nil {
		return err
	}
	switch status {
	case StatusFailed, StatusComplete:
		s.log.Info("Migration chain finished; ignoring job run", "job", name, "status", status)
		return nil
	case StatusNotStarted:
		if err := s.start(ctx); err != nil {
			return err
		}
	}

	job, err := s.job(name)
	if err != nil {
		span.RecordError(err)
		return err
	}
	errsBefore := len(job.Errors())
	runErr := job.Run(ctx)
	observability.Current().ObserveMigrationBatch(name, job.LastRun(), len(job.Errors())-errsBefore, runErr != nil)
	for _, e := range job.Errors() {
		if err := s.AddError(ctx, e); err != nil {
			return err
		}
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return fmt.Errorf("migration %s: %w", name, runErr)
	}

	if !job.IsComplete() {
		_, err := s.scheduleJob(ctx, name)
		return err
	}
	s.log.Info("Migration job complete", "job", name)

	if !s.syncEnabled() {
		s.log.Warn("Progress sync disabled; migration chain halted", "after", name)
		return nil
	}
	if next := s.registry.Next(name); next != "" {
		_, err := s.scheduleJob(ctx, next)
		return err
	}
	return s.complete(ctx)
}

func (s *JobScheduler) start(ctx context.Context) error {
	if err := s.opts.Set(ctx, StatusOption, StatusInProgress); err != nil {
		return err
	}
	return s.opts.Set(ctx, StartedAtOption, microtime(s.now()))
}

func (s *JobScheduler) complete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if status != StatusInProgress {
		return nil
	}
	completedAt := microtime(s.now())
	if err := s.opts.Set(ctx, CompletedAtOption, completedAt); err != nil {
		return err
	}
	if err := s.opts.Set(ctx, StatusOption, StatusComplete); err != nil {
		return err
	}

	startedAt, _, err := s.StartedAt(ctx)
	if err != nil {
		return err
	}
	errs, err := s.Errors(ctx)
	if err != nil {
		return err
	}
	duration := completedAt - startedAt
	s.log.Info("Migration complete", "duration_seconds", duration, "errors", len(errs))
	if s.events != nil {
		if err := s.events.Publish(ctx, bus.Event{
			Name:  CompleteEvent,
			Props: map[string]any{"duration": duration, "errors": len(errs)},
		}); err != nil {
			s.log.Warn("Publishing migration complete event failed", "error", err)
		}
	}
	return nil
}

// Fail records msg and marks the chain failed. Repeated calls after the first
// are no-ops.
func (s *JobScheduler) Fail(ctx context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if status == StatusFailed {
		return nil
	}
	if err := s.AddError(ctx, msg); err != nil {
		return err
	}
	if err := s.opts.Set(ctx, StatusOption, StatusFailed); err != nil {
		return err
	}
	if _, err := s.queue.Unschedule(ctx, Hook, nil); err != nil {
		s.log.Warn("Unscheduling migration actions failed", "error", err)
	}
	s.log.Error("Migration failed", "error", msg)
	return nil
}

// AddError appends msg to the persisted error list unless it is already there.
func (s *JobScheduler) AddError(ctx context.Context, msg string) error {
	errs, err := s.Errors(ctx)
	if err != nil {
		return err
	}
	for _, e := range errs {
		if e == msg {
			return nil
		}
	}
	return s.opts.Set(ctx, ErrorsOption, append(errs, msg))
}

func (s *JobScheduler) Errors(ctx context.Context) ([]string, error) {
	var errs []string
	if _, err := s.opts.Get(ctx, ErrorsOption, &errs); err != nil {
		return nil, err
	}
	return errs, nil
}

func (s *JobScheduler) Status(ctx context.Context) (Status, error) {
	var st Status
	ok, err := s.opts.Get(ctx, StatusOption, &st)
	if err != nil {
		return "", err
	}
	if !ok || st == "" {
		return StatusNotStarted, nil
	}
	return st, nil
}

func (s *JobScheduler) IsInProgress(ctx context.Context) bool { return s.is(ctx, StatusInProgress) }
func (s *JobScheduler) IsComplete(ctx context.Context) bool   { return s.is(ctx, StatusComplete) }
func (s *JobScheduler) IsFailed(ctx context.Context) bool     { return s.is(ctx, StatusFailed) }

func (s *JobScheduler) is(ctx context.Context, want Status) bool {
	st, err := s.Status(ctx)
	return err == nil && st == want
}

// StartedAt is unix seconds with microsecond precision.
func (s *JobScheduler) StartedAt(ctx context.Context) (float64, bool, error) {
	return s.floatOption(ctx, StartedAtOption)
}

func (s *JobScheduler) CompletedAt(ctx context.Context) (float64, bool, error) {
	return s.floatOption(ctx, CompletedAtOption)
}

func (s *JobScheduler) floatOption(ctx context.Context, key string) (float64, bool, error) {
	var v float64
	ok, err := s.opts.Get(ctx, key, &v)
	return v, ok, err
}

// Pending lists the queued migration actions.
func (s *JobScheduler) Pending(ctx context.Context) ([]uuid.UUID, error) {
	return s.queue.GetScheduledActions(ctx, actions.Filter{Hook: Hook, Statuses: []string{jobs.ActionStatusPending}})
}

// ClearState resets status, timestamps, errors and every migration cursor,
// and drops pending migration actions.
func (s *JobScheduler) ClearState(ctx context.Context) error {
	if _, err := s.queue.Unschedule(ctx, Hook, nil); err != nil {
		return err
	}
	for _, key := range []string{StatusOption, StartedAtOption, CompletedAtOption, ErrorsOption} {
		if err := s.opts.Delete(ctx, key); err != nil {
			return err
		}
	}
	for _, name := range s.registry.Names() {
		m, err := s.registry.Build(name)
		if err != nil {
			return err
		}
		if err := m.ClearState(ctx); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	s.mu.Lock()
	s.jobs = map[string]*Job{}
	s.mu.Unlock()
	return nil
}

// DryRunResult is what one migration would move in its next batch.
type DryRunResult struct {
	Name   string   `json:"name"`
	Count  int      `json:"count"`
	Errors []string `json:"errors,omitempty"`
}

// DryRun runs every migration once without writing or moving cursors.
func (s *JobScheduler) DryRun(ctx context.Context) ([]DryRunResult, error) {
	var out []DryRunResult
	for _, name := range s.registry.Names() {
		m, err := s.registry.Build(name)
		if err != nil {
			return nil, err
		}
		n, err := m.Run(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("dry run %s: %w", name, err)
		}
		out = append(out, DryRunResult{Name: name, Count: n, Errors: m.Errors()})
	}
	return out, nil
}

func microtime(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}
