package actionrun

import (
	"time"

	"github.com/google/uuid"
)

const (
	WorkflowName = "scheduled_action"
	ActivityRun  = "scheduled_action_run"
)

type Input struct {
	ActionID    string    `json:"action_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type RunResult struct {
	ActionID string `json:"action_id"`
	Claimed  bool   `json:"claimed"`
	Error    string `json:"error,omitempty"`
}

// WorkflowID is stable per action so a second dispatch of the same action is rejected.
func WorkflowID(id uuid.UUID) string { return "scheduled_action:" + id.String() }
