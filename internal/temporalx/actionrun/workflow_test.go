package actionrun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func TestWorkflowRunsActionWhenDue(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	acts := &Activities{}
	env.RegisterActivityWithOptions(acts.Run, activity.RegisterOptions{Name: ActivityRun})
	env.OnActivity(ActivityRun, mock.Anything, "a1").Return(RunResult{ActionID: "a1", Claimed: true}, nil).Once()

	start := env.Now()
	env.ExecuteWorkflow(Workflow, Input{ActionID: "a1", ScheduledAt: start.Add(time.Hour)})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out RunResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.True(t, out.Claimed)
	require.False(t, env.Now().Before(start.Add(time.Hour)), "workflow must wait for scheduled_at")
	env.AssertExpectations(t)
}

func TestWorkflowRejectsMissingID(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.ExecuteWorkflow(Workflow, Input{})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
