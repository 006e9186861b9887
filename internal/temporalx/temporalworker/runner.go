package temporalworker

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/temporalx"
	"github.com/yungbote/lms-progress/internal/temporalx/actionrun"
)

// Runner executes scheduled actions as Temporal workflows. It doubles as the
// queue's Dispatcher so every newly scheduled action gets its own workflow.
type Runner struct {
	log         *logger.Logger
	tc          temporalsdkclient.Client
	cfg         temporalx.Config
	queue       *actions.Queue
	concurrency int
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, queue *actions.Queue, concurrency int) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if queue == nil {
		return nil, fmt.Errorf("temporal runner missing action queue")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		log:         log.With("component", "TemporalRunner"),
		tc:          tc,
		cfg:         cfg,
		queue:       queue,
		concurrency: concurrency,
	}, nil
}

// Dispatch starts the workflow for action. Starting an already running
// workflow for the same action is not an error.
func (r *Runner) Dispatch(ctx context.Context, action *jobs.ScheduledAction) error {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                                       actionrun.WorkflowID(action.ID),
		TaskQueue:                                r.cfg.TaskQueue,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	_, err := r.tc.ExecuteWorkflow(ctx, opts, actionrun.WorkflowName, actionrun.Input{
		ActionID:    action.ID.String(),
		ScheduledAt: action.ScheduledAt,
	})
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	if err != nil && !errors.As(err, &already) {
		return err
	}
	return nil
}

// Sweep dispatches every pending action. Actions scheduled while no runner was
// connected are picked up here.
func (r *Runner) Sweep(ctx context.Context) (int, error) {
	pending, err := r.queue.Actions(ctx, actions.Filter{Statuses: []string{jobs.ActionStatusPending}})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range pending {
		if err := r.Dispatch(ctx, a); err != nil {
			r.log.Warn("Sweep dispatch failed", "action_id", a.ID, "hook", a.Hook, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// Run registers the dispatcher, starts the worker, sweeps pending actions and
// blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	w, err := r.Start(ctx)
	if err != nil {
		return err
	}
	r.queue.SetDispatcher(r)
	if n, err := r.Sweep(ctx); err != nil {
		r.log.Warn("Initial sweep failed", "error", err)
	} else if n > 0 {
		r.log.Info("Dispatched pending actions", "count", n)
	}
	<-ctx.Done()
	r.queue.SetDispatcher(nil)
	w.Stop()
	return nil
}

// Start brings up the Temporal worker, retrying within DialMaxWait. A missing
// namespace is registered first when AutoRegisterNamespace is set.
func (r *Runner) Start(ctx context.Context) (worker.Worker, error) {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	var started worker.Worker
	err := temporalx.Retry(ctx, r.cfg, func(attempt int) (bool, error) {
		w := r.newWorker()
		if err := w.Start(); err != nil {
			w.Stop()
			r.ensureNamespace(ctx, err)
			return true, err
		}
		started = w
		r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
		return false, nil
	}, func(attempt int, err error) {
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", err)
	})
	if err != nil {
		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("temporal namespace %s not found: %w", r.cfg.Namespace, err)
		}
		return nil, err
	}
	return started, nil
}

func (r *Runner) ensureNamespace(ctx context.Context, startErr error) {
	var nfe *serviceerror.NamespaceNotFound
	if !r.cfg.AutoRegisterNamespace || !errors.As(startErr, &nfe) {
		return
	}
	if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
		r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})
	acts := &actionrun.Activities{Log: r.log, Queue: r.queue}
	w.RegisterWorkflowWithOptions(actionrun.Workflow, workflow.RegisterOptions{Name: actionrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Run, activity.RegisterOptions{Name: actionrun.ActivityRun})
	return w
}
