package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type Options struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleAfter fails actions left running longer than this. Zero disables the sweep.
	StaleAfter time.Duration
}

// Worker is the in-process action runner: Concurrency poll loops claiming due
// actions plus an optional stale-action sweep.
type Worker struct {
	log   *logger.Logger
	queue *actions.Queue
	opts  Options
}

func NewWorker(baseLog *logger.Logger, queue *actions.Queue, opts Options) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Worker{
		log:   baseLog.With("component", "ActionWorker"),
		queue: queue,
		opts:  opts,
	}
}

// Start runs the pool in the background.
func (w *Worker) Start(ctx context.Context) {
	go func() { _ = w.Run(ctx) }()
}

// Run blocks until ctx is done and every loop has returned.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting action worker pool", "concurrency", w.opts.Concurrency, "poll_interval", w.opts.PollInterval, "stale_after", w.opts.StaleAfter)

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= w.opts.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			every(gctx, w.opts.PollInterval, func() { w.drain(gctx, slot) })
			return nil
		})
	}
	if w.opts.StaleAfter > 0 {
		g.Go(func() error {
			every(gctx, max(w.opts.StaleAfter/2, time.Millisecond), func() { w.sweep(gctx) })
			return nil
		})
	}
	err := g.Wait()
	w.log.Info("Action worker pool stopped")
	return err
}

func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// drain claims until nothing is due, so a migration batch that reschedules
// itself runs again without waiting for the next tick.
func (w *Worker) drain(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		action, err := w.queue.ClaimNextDue(ctx)
		if err != nil {
			w.log.Warn("ClaimNextDue failed", "slot", slot, "error", err)
			return
		}
		if action == nil {
			return
		}
		if err := w.queue.Execute(ctx, action); err != nil {
			w.log.Warn("Action failed", "slot", slot, "hook", action.Hook, "action_id", action.ID, "error", err)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	n, err := w.queue.FailStale(ctx, w.opts.StaleAfter)
	switch {
	case err != nil:
		w.log.Warn("Stale action sweep failed", "error", err)
	case n > 0:
		w.log.Warn("Failed stale actions", "count", n, "stale_after", w.opts.StaleAfter)
	}
}
