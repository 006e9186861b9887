// Package course stores course progress in the legacy activity store, the
// progress tables, or both.
package course

import (
	"context"

	"github.com/yungbote/lms-progress/internal/domain/progress"
)

type Repository interface {
	// Create fails with errors.ErrProgressNotCreated when the initial record
	// could not be read back.
	Create(ctx context.Context, courseID, userID int64) (progress.CourseProgress, error)
	// Get returns nil without error when there is no record.
	Get(ctx context.Context, courseID, userID int64) (progress.CourseProgress, error)
	Has(ctx context.Context, courseID, userID int64) (bool, error)
	Save(ctx context.Context, p progress.CourseProgress) error
	Delete(ctx context.Context, p progress.CourseProgress) error
	DeleteForCourse(ctx context.Context, courseID int64) error
	DeleteForUser(ctx context.Context, userID int64) error
}
