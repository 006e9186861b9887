package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/domain/options"
)

// AutoMigrateAll creates the host tables this service reads and writes.
// The progress tables are owned by the installer and versioned separately.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// =========================
		// Legacy activity store
		// =========================
		&legacy.Post{},
		&legacy.PostMeta{},
		&legacy.Comment{},
		&legacy.CommentMeta{},

		// =========================
		// Settings
		// =========================
		&options.Option{},

		// =========================
		// Scheduler
		// =========================
		&jobs.ScheduledAction{},
		&jobs.ActionLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Claim scans for due pending actions.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_scheduled_action_due
		ON scheduled_action (status, scheduled_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_scheduled_action_due: %w", err)
	}
	return nil
}
