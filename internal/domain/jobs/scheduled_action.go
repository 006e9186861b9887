package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionStatusPending  = "pending"
	ActionStatusRunning  = "running"
	ActionStatusComplete = "complete"
	ActionStatusFailed   = "failed"
	ActionStatusCanceled = "canceled"
)

// ScheduledAction is one deferred hook invocation with its arguments.
type ScheduledAction struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Hook        string         `gorm:"column:hook;not null;index:idx_scheduled_action_hook_status,priority:1" json:"hook"`
	Args        datatypes.JSON `gorm:"column:args" json:"args"`
	ArgsHash    string         `gorm:"column:args_hash;size:64;not null;index" json:"args_hash"`
	Group       string         `gorm:"column:group_name;index" json:"group,omitempty"`
	Status      string         `gorm:"column:status;not null;index:idx_scheduled_action_hook_status,priority:2;index" json:"status"`
	ScheduledAt time.Time      `gorm:"column:scheduled_at;not null;index" json:"scheduled_at"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (ScheduledAction) TableName() string { return "scheduled_action" }
