package jobs

import (
	"time"

	"github.com/google/uuid"
)

// ActionLog is an append-only ledger of status changes for a scheduled action.
type ActionLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActionID  uuid.UUID `gorm:"type:uuid;not null;index" json:"action_id"`
	Hook      string    `gorm:"column:hook;not null;index" json:"hook"`
	Status    string    `gorm:"column:status;not null" json:"status"`
	Message   string    `gorm:"column:message" json:"message,omitempty"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ActionLog) TableName() string { return "scheduled_action_log" }
