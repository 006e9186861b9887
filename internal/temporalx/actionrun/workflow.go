package actionrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow waits until the action is due, then runs it once. Handler failures
// are recorded on the action row and reported in the result, not retried here.
func Workflow(ctx workflow.Context, in Input) (RunResult, error) {
	if strings.TrimSpace(in.ActionID) == "" {
		return RunResult{}, fmt.Errorf("actionrun: missing action_id")
	}

	if !in.ScheduledAt.IsZero() {
		if d := in.ScheduledAt.Sub(workflow.Now(ctx)); d > 0 {
			if err := workflow.Sleep(ctx, d); err != nil {
				return RunResult{}, err
			}
		}
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var out RunResult
	if err := workflow.ExecuteActivity(ctx, ActivityRun, in.ActionID).Get(ctx, &out); err != nil {
		return out, err
	}
	return out, nil
}
