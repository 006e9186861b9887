package actions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	jobsrepo "github.com/yungbote/lms-progress/internal/data/repos/jobs"
	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/jobs/runtime"
	"github.com/yungbote/lms-progress/internal/observability"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type FailureKind string

const (
	// FailureUnexpectedShutdown covers handler panics and actions left running
	// by a process that went away.
	FailureUnexpectedShutdown FailureKind = "unexpected_shutdown"
	FailureExecution          FailureKind = "execution"
)

type Failure struct {
	Action *jobs.ScheduledAction
	Kind   FailureKind
	Err    error
}

type FailureListener func(ctx context.Context, f Failure)

// Dispatcher hands a freshly scheduled action to an external engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, action *jobs.ScheduledAction) error
}

// Filter selects actions. Args, when set, is matched by its canonical hash.
type Filter struct {
	Hook     string
	Args     any
	Group    string
	Statuses []string
	Limit    int
}

var ErrNoHandler = errors.New("no handler registered for hook")

// Queue is the scheduler capability: named, argument-addressed deferred actions
// stored in scheduled_action and executed through the hook registry.
type Queue struct {
	repo     jobsrepo.ScheduledActionRepo
	registry *runtime.Registry
	log      *logger.Logger
	tracer   trace.Tracer
	now      func() time.Time

	mu         sync.RWMutex
	listeners  []FailureListener
	dispatcher Dispatcher
}

func NewQueue(repo jobsrepo.ScheduledActionRepo, registry *runtime.Registry, baseLog *logger.Logger) *Queue {
	if registry == nil {
		registry = runtime.NewRegistry()
	}
	return &Queue{
		repo:     repo,
		registry: registry,
		log:      baseLog.With("component", "ActionQueue"),
		tracer:   otel.Tracer("lms-progress/actions"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (q *Queue) Registry() *runtime.Registry { return q.registry }

func (q *Queue) OnFailure(fn FailureListener) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

func (q *Queue) SetDispatcher(d Dispatcher) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dispatcher = d
}

// ScheduleSingleAction enqueues hook(args) to run as soon as a runner picks it up.
func (q *Queue) ScheduleSingleAction(ctx context.Context, hook string, args any, allowDuplicate bool) (uuid.UUID, error) {
	return q.ScheduleAt(ctx, hook, args, "", q.now(), allowDuplicate)
}

// ScheduleAt enqueues hook(args) for at. Unless allowDuplicate is set, an
// already pending action with the same hook and args is returned instead. A
// running action is not a duplicate, so a handler may re-queue itself.
func (q *Queue) ScheduleAt(ctx context.Context, hook string, args any, group string, at time.Time, allowDuplicate bool) (uuid.UUID, error) {
	if hook == "" {
		return uuid.Nil, fmt.Errorf("schedule: empty hook")
	}
	raw, hash, err := canonicalArgs(args)
	if err != nil {
		return uuid.Nil, fmt.Errorf("schedule %s: %w", hook, err)
	}
	dbc := dbctx.Context{Ctx: ctx}

	if !allowDuplicate {
		existing, err := q.repo.Find(dbc, jobsrepo.ActionFilter{
			Hook:     hook,
			ArgsHash: hash,
			Statuses: []string{jobs.ActionStatusPending},
			Limit:    1,
		})
		if err != nil {
			return uuid.Nil, err
		}
		if len(existing) > 0 {
			q.log.Debug("Action already pending", "hook", hook, "action_id", existing[0].ID)
			return existing[0].ID, nil
		}
	}

	now := q.now()
	action := &jobs.ScheduledAction{
		ID:          uuid.New(),
		Hook:        hook,
		Args:        datatypes.JSON(raw),
		ArgsHash:    hash,
		Group:       group,
		Status:      jobs.ActionStatusPending,
		ScheduledAt: at.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := q.repo.Create(dbc, action); err != nil {
		return uuid.Nil, err
	}
	q.appendLog(ctx, action, jobs.ActionStatusPending, "scheduled")
	q.log.Debug("Action scheduled", "hook", hook, "action_id", action.ID, "scheduled_at", action.ScheduledAt)

	q.mu.RLock()
	d := q.dispatcher
	q.mu.RUnlock()
	if d != nil {
		if err := d.Dispatch(ctx, action); err != nil {
			// The action stays pending; polling runners or the next sweep pick it up.
			q.log.Warn("Action dispatch failed", "hook", hook, "action_id", action.ID, "error", err)
		}
	}
	return action.ID, nil
}

func (q *Queue) GetScheduledActions(ctx context.Context, filter Filter) ([]uuid.UUID, error) {
	rows, err := q.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out, nil
}

// Actions is GetScheduledActions returning full rows.
func (q *Queue) Actions(ctx context.Context, filter Filter) ([]*jobs.ScheduledAction, error) {
	return q.find(ctx, filter)
}

func (q *Queue) find(ctx context.Context, filter Filter) ([]*jobs.ScheduledAction, error) {
	f := jobsrepo.ActionFilter{
		Hook:     filter.Hook,
		Group:    filter.Group,
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
	}
	if filter.Args != nil {
		_, hash, err := canonicalArgs(filter.Args)
		if err != nil {
			return nil, err
		}
		f.ArgsHash = hash
	}
	return q.repo.Find(dbctx.Context{Ctx: ctx}, f)
}

// NextScheduled returns the running action for hook(args) if there is one,
// otherwise the earliest pending one, otherwise nil.
func (q *Queue) NextScheduled(ctx context.Context, hook string, args any) (*jobs.ScheduledAction, error) {
	rows, err := q.find(ctx, Filter{Hook: hook, Args: args, Statuses: []string{jobs.ActionStatusRunning}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	rows, err = q.find(ctx, Filter{Hook: hook, Args: args, Statuses: []string{jobs.ActionStatusPending}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	return nil, nil
}

// Unschedule cancels pending actions for hook. Nil args cancels every pending
// action of the hook.
func (q *Queue) Unschedule(ctx context.Context, hook string, args any) (int64, error) {
	hash := ""
	if args != nil {
		_, h, err := canonicalArgs(args)
		if err != nil {
			return 0, err
		}
		hash = h
	}
	n, err := q.repo.CancelPending(dbctx.Context{Ctx: ctx}, hook, hash)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.log.Info("Actions unscheduled", "hook", hook, "count", n)
	}
	return n, nil
}

func (q *Queue) ClaimNextDue(ctx context.Context) (*jobs.ScheduledAction, error) {
	return q.repo.ClaimNextDue(dbctx.Context{Ctx: ctx}, q.now())
}

// RunByID claims a pending action and executes it. It reports false when the
// action is missing or no longer pending.
func (q *Queue) RunByID(ctx context.Context, id uuid.UUID) (bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ok, err := q.repo.ClaimByID(dbc, id, q.now())
	if err != nil || !ok {
		return false, err
	}
	action, err := q.repo.GetByID(dbc, id)
	if err != nil {
		return true, err
	}
	if action == nil {
		return false, nil
	}
	return true, q.Execute(ctx, action)
}

// RunDue executes due actions one after another until none is left or max is
// reached (max <= 0 means no limit). It returns how many ran.
func (q *Queue) RunDue(ctx context.Context, max int) (int, error) {
	ran := 0
	for max <= 0 || ran < max {
		if err := ctx.Err(); err != nil {
			return ran, err
		}
		action, err := q.ClaimNextDue(ctx)
		if err != nil {
			return ran, err
		}
		if action == nil {
			return ran, nil
		}
		ran++
		if err := q.Execute(ctx, action); err != nil {
			q.log.Warn("Action failed", "hook", action.Hook, "action_id", action.ID, "error", err)
		}
	}
	return ran, nil
}

// Execute runs a claimed action through its handler and records the outcome.
// Panics are recovered and reported as FailureUnexpectedShutdown.
func (q *Queue) Execute(ctx context.Context, action *jobs.ScheduledAction) (err error) {
	if action == nil {
		return nil
	}
	ctx, span := q.tracer.Start(ctx, "action.execute", trace.WithAttributes(
		attribute.String("action.hook", action.Hook),
		attribute.String("action.id", action.ID.String()),
		attribute.Int("action.attempts", action.Attempts),
	))
	defer span.End()
	start := time.Now()
	defer func() {
		observability.Current().ObserveAction(action.Hook, action.Status, time.Since(start))
	}()

	q.appendLog(ctx, action, jobs.ActionStatusRunning, "")

	h, ok := q.registry.Get(action.Hook)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrNoHandler, action.Hook)
		q.finish(ctx, action, err, FailureExecution, span)
		return err
	}

	kind := FailureExecution
	func() {
		defer func() {
			if r := recover(); r != nil {
				q.log.Error("Action handler panic", "hook", action.Hook, "action_id", action.ID, "panic", r)
				err = fmt.Errorf("panic: %v", r)
				kind = FailureUnexpectedShutdown
			}
		}()
		err = h.Run(runtime.NewContext(ctx, action))
	}()

	q.finish(ctx, action, err, kind, span)
	return err
}

func (q *Queue) finish(ctx context.Context, action *jobs.ScheduledAction, runErr error, kind FailureKind, span trace.Span) {
	now := q.now()
	updates := map[string]interface{}{
		"finished_at": now,
		"updated_at":  now,
	}
	status := jobs.ActionStatusComplete
	msg := ""
	if runErr != nil {
		status = jobs.ActionStatusFailed
		msg = runErr.Error()
		updates["error"] = msg
		span.RecordError(runErr)
		span.SetStatus(codes.Error, msg)
	}
	updates["status"] = status

	// Ignore the write if the action was canceled while it ran.
	if _, err := q.repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, action.ID, []string{jobs.ActionStatusCanceled}, updates); err != nil {
		q.log.Error("Action status update failed", "hook", action.Hook, "action_id", action.ID, "error", err)
	}
	action.Status = status
	action.Error = msg
	action.FinishedAt = &now
	q.appendLog(ctx, action, status, msg)

	if runErr != nil {
		q.notify(ctx, Failure{Action: action, Kind: kind, Err: runErr})
	}
}

// FailStale marks actions running for longer than timeout as failed and reports
// them as unexpected shutdowns.
func (q *Queue) FailStale(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return 0, nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	stale, err := q.repo.StaleRunning(dbc, q.now().Add(-timeout))
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, action := range stale {
		runErr := fmt.Errorf("action %s timed out after %s", action.ID, timeout)
		now := q.now()
		ok, err := q.repo.UpdateFieldsUnlessStatus(dbc, action.ID, []string{jobs.ActionStatusComplete, jobs.ActionStatusFailed, jobs.ActionStatusCanceled}, map[string]interface{}{
			"status":      jobs.ActionStatusFailed,
			"error":       runErr.Error(),
			"finished_at": now,
		})
		if err != nil {
			return failed, err
		}
		if !ok {
			continue
		}
		failed++
		action.Status = jobs.ActionStatusFailed
		action.Error = runErr.Error()
		q.appendLog(ctx, action, jobs.ActionStatusFailed, runErr.Error())
		q.log.Warn("Stale action failed", "hook", action.Hook, "action_id", action.ID)
		q.notify(ctx, Failure{Action: action, Kind: FailureUnexpectedShutdown, Err: runErr})
	}
	return failed, nil
}

func (q *Queue) Logs(ctx context.Context, id uuid.UUID) ([]*jobs.ActionLog, error) {
	return q.repo.Logs(dbctx.Context{Ctx: ctx}, id)
}

func (q *Queue) notify(ctx context.Context, f Failure) {
	q.mu.RLock()
	listeners := append([]FailureListener(nil), q.listeners...)
	q.mu.RUnlock()
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					q.log.Error("Failure listener panic", "hook", f.Action.Hook, "panic", r)
				}
			}()
			fn(ctx, f)
		}()
	}
}

func (q *Queue) appendLog(ctx context.Context, action *jobs.ScheduledAction, status, msg string) {
	err := q.repo.AppendLog(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, &jobs.ActionLog{
		ActionID:  action.ID,
		Hook:      action.Hook,
		Status:    status,
		Message:   msg,
		CreatedAt: q.now(),
	})
	if err != nil {
		q.log.Warn("Action log append failed", "action_id", action.ID, "error", err)
	}
}

// canonicalArgs encodes args as JSON. Map keys are sorted by encoding/json, so
// equal arguments hash equally.
func canonicalArgs(args any) ([]byte, string, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, "", fmt.Errorf("encode args: %w", err)
	}
	sum := sha256.Sum256(raw)
	return raw, hex.EncodeToString(sum[:]), nil
}
