package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/jobs/runtime"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

const Hook = "sensei_background_job"

// Constructor rebuilds a job from the arguments stored on its scheduled action.
type Constructor func(id string, args map[string]any) (Job, error)

// CompleteFunc runs once after a job reports completion, before its state is ended.
type CompleteFunc func(ctx context.Context, job Job) error

type actionArgs struct {
	Name string         `json:"name"`
	ID   string         `json:"id"`
	Args map[string]any `json:"args,omitempty"`
}

// Scheduler runs background jobs one run per scheduled action, re-queueing
// until the job is complete.
type Scheduler struct {
	log   *logger.Logger
	queue *actions.Queue

	mu         sync.RWMutex
	ctors      map[string]Constructor
	onComplete map[string]CompleteFunc
}

func NewScheduler(queue *actions.Queue, baseLog *logger.Logger) *Scheduler {
	return &Scheduler{
		log:        baseLog.With("component", "BackgroundJobScheduler"),
		queue:      queue,
		ctors:      map[string]Constructor{},
		onComplete: map[string]CompleteFunc{},
	}
}

// Register makes name resolvable from a scheduled action. onComplete may be nil.
func (s *Scheduler) Register(name string, ctor Constructor, onComplete CompleteFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctors[name] = ctor
	if onComplete != nil {
		s.onComplete[name] = onComplete
	}
}

// Init registers the hook handler on the queue.
func (s *Scheduler) Init() error {
	return s.queue.Registry().Register(runtime.HandlerFunc{Name: Hook, Fn: s.handle})
}

func (s *Scheduler) handle(c *runtime.Context) error {
	var args actionArgs
	if err := c.Decode(&args); err != nil {
		return fmt.Errorf("background job args: %w", err)
	}
	job, err := s.resolve(args)
	if err != nil {
		return err
	}
	return s.RunJob(c.Ctx, job)
}

func (s *Scheduler) resolve(args actionArgs) (Job, error) {
	s.mu.RLock()
	ctor, ok := s.ctors[args.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown background job %q", args.Name)
	}
	return ctor(args.ID, args.Args)
}

func toActionArgs(job Job) actionArgs {
	return actionArgs{Name: job.Name(), ID: job.ID(), Args: job.Args()}
}

// ScheduleJob queues job unless an identical run is already pending.
func (s *Scheduler) ScheduleJob(ctx context.Context, job Job) (uuid.UUID, error) {
	return s.queue.ScheduleSingleAction(ctx, Hook, toActionArgs(job), false)
}

// RunJob runs job once. A finished job gets its completion callback and its
// state ended; an unfinished one is scheduled again.
func (s *Scheduler) RunJob(ctx context.Context, job Job) error {
	if err := job.Run(ctx); err != nil {
		return err
	}
	if !job.IsComplete() {
		_, err := s.ScheduleJob(ctx, job)
		return err
	}

	s.mu.RLock()
	done := s.onComplete[job.Name()]
	s.mu.RUnlock()
	if done != nil {
		if err := done(ctx, job); err != nil {
			return err
		}
	}
	s.log.Info("Background job complete", "job", job.Name(), "id", job.ID())
	return job.End(ctx)
}

// CancelScheduledJob unschedules pending runs and drops the job's state.
func (s *Scheduler) CancelScheduledJob(ctx context.Context, job Job) error {
	if _, err := s.queue.Unschedule(ctx, Hook, toActionArgs(job)); err != nil {
		return err
	}
	return job.End(ctx)
}

// IsScheduled reports whether job has a pending or running action.
func (s *Scheduler) IsScheduled(ctx context.Context, job Job) (bool, error) {
	next, err := s.queue.NextScheduled(ctx, Hook, toActionArgs(job))
	if err != nil {
		return false, err
	}
	return next != nil, nil
}
