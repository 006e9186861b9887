package lesson

import (
	"context"

	"github.com/yungbote/lms-progress/internal/domain/progress"
)

type Repository interface {
	// Create fails with errors.ErrProgressNotCreated when the initial record
	// could not be read back.
	Create(ctx context.Context, lessonID, userID int64) (progress.LessonProgress, error)
	// Get returns nil without error when there is no record.
	Get(ctx context.Context, lessonID, userID int64) (progress.LessonProgress, error)
	Has(ctx context.Context, lessonID, userID int64) (bool, error)
	Save(ctx context.Context, p progress.LessonProgress) error
	Delete(ctx context.Context, p progress.LessonProgress) error
	DeleteForLesson(ctx context.Context, lessonID int64) error
	DeleteForUser(ctx context.Context, userID int64) error
}
