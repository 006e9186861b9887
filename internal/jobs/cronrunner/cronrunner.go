package cronrunner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// Runner drains due actions on a cron schedule. Overlapping ticks are skipped.
type Runner struct {
	log        *logger.Logger
	queue      *actions.Queue
	spec       string
	staleAfter time.Duration
	cron       *cron.Cron
	running    atomic.Bool
}

func New(baseLog *logger.Logger, queue *actions.Queue, spec string, loc *time.Location, staleAfter time.Duration) (*Runner, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Runner{
		log:        baseLog.With("component", "CronRunner"),
		queue:      queue,
		spec:       spec,
		staleAfter: staleAfter,
		cron:       cron.New(cron.WithLocation(loc)),
	}
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return r, nil
}

// Run starts the cron loop and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting cron runner", "spec", r.spec)
	r.cron.Start()
	<-ctx.Done()
	stopped := r.cron.Stop()
	<-stopped.Done()
	r.log.Info("Cron runner stopped")
	return nil
}

func (r *Runner) tick() {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Debug("Previous tick still running; skipping")
		return
	}
	defer r.running.Store(false)
	r.Tick(context.Background())
}

// Tick runs one pass: fail stale actions, then drain everything due.
func (r *Runner) Tick(ctx context.Context) int {
	if r.staleAfter > 0 {
		if _, err := r.queue.FailStale(ctx, r.staleAfter); err != nil {
			r.log.Warn("Stale action sweep failed", "error", err)
		}
	}
	ran, err := r.queue.RunDue(ctx, 0)
	if err != nil {
		r.log.Warn("RunDue failed", "error", err)
	}
	if ran > 0 {
		r.log.Debug("Cron tick", "ran", ran)
	}
	return ran
}
