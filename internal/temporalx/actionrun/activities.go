package actionrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type Activities struct {
	Log   *logger.Logger
	Queue *actions.Queue
}

// Run claims and executes one scheduled action. Only storage errors are
// returned as activity errors; a failing handler is part of the result.
func (a *Activities) Run(ctx context.Context, actionID string) (RunResult, error) {
	res := RunResult{ActionID: strings.TrimSpace(actionID)}
	if a == nil || a.Queue == nil {
		return res, fmt.Errorf("actionrun: activity not configured")
	}
	id, err := uuid.Parse(res.ActionID)
	if err != nil || id == uuid.Nil {
		return res, fmt.Errorf("actionrun: invalid action_id %q", actionID)
	}

	stop := startHeartbeat(ctx)
	defer stop()

	claimed, runErr := a.Queue.RunByID(ctx, id)
	res.Claimed = claimed
	if !claimed {
		if runErr != nil {
			return res, runErr
		}
		a.Log.Debug("Action not pending; nothing to run", "action_id", id)
		return res, nil
	}
	if runErr != nil {
		res.Error = runErr.Error()
	}
	return res, nil
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
