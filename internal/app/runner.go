package app

import (
	"context"
	"fmt"

	"github.com/yungbote/lms-progress/internal/config"
	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/jobs/cronrunner"
	"github.com/yungbote/lms-progress/internal/jobs/worker"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/temporalx"
	"github.com/yungbote/lms-progress/internal/temporalx/temporalworker"
)

// Runner executes due scheduled actions until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// wireRunner picks the action runner named by ACTION_RUNNER. The returned
// close func releases any client the runner holds.
func wireRunner(ctx context.Context, cfg config.Config, queue *actions.Queue, log *logger.Logger) (Runner, func(), error) {
	noop := func() {}
	switch cfg.Runner.Kind {
	case "cron":
		r, err := cronrunner.New(log, queue, cfg.Runner.CronSpec, cfg.Location(), cfg.Runner.StaleAfter)
		if err != nil {
			return nil, noop, err
		}
		return r, noop, nil
	case "temporal":
		tcfg := temporalx.LoadConfig()
		if !tcfg.Enabled() {
			return nil, noop, fmt.Errorf("ACTION_RUNNER=temporal requires TEMPORAL_ADDRESS")
		}
		tc, err := temporalx.NewClient(ctx, tcfg, log)
		if err != nil {
			return nil, noop, fmt.Errorf("init temporal client: %w", err)
		}
		r, err := temporalworker.NewRunner(log, tc, tcfg, queue, cfg.Runner.Concurrency)
		if err != nil {
			tc.Close()
			return nil, noop, err
		}
		return r, tc.Close, nil
	default:
		return worker.NewWorker(log, queue, worker.Options{
			Concurrency:  cfg.Runner.Concurrency,
			PollInterval: cfg.Runner.PollInterval,
			StaleAfter:   cfg.Runner.StaleAfter,
		}), noop, nil
	}
}
