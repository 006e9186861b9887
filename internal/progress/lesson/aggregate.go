package lesson

import (
	"context"
	"time"

	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// AggregateRepository behaves like course.AggregateRepository for lessons.
type AggregateRepository struct {
	comments  Repository
	tables    Repository
	useTables bool
	log       *logger.Logger
}

func NewAggregateRepository(comments, tables Repository, useTables bool, baseLog *logger.Logger) *AggregateRepository {
	return &AggregateRepository{
		comments:  comments,
		tables:    tables,
		useTables: useTables,
		log:       baseLog.With("repo", "AggregateLessonProgressRepository"),
	}
}

func (r *AggregateRepository) Create(ctx context.Context, lessonID, userID int64) (progress.LessonProgress, error) {
	p, err := r.comments.Create(ctx, lessonID, userID)
	if err != nil {
		return nil, err
	}
	if r.useTables {
		// The legacy write is authoritative; a failed mirror is logged, not returned.
		if _, err := r.tables.Create(ctx, lessonID, userID); err != nil {
			r.log.Warn("Tables create failed after legacy write", "lesson_id", lessonID, "user_id", userID, "error", err)
		}
	}
	return p, nil
}

func (r *AggregateRepository) Get(ctx context.Context, lessonID, userID int64) (progress.LessonProgress, error) {
	return r.comments.Get(ctx, lessonID, userID)
}

func (r *AggregateRepository) Has(ctx context.Context, lessonID, userID int64) (bool, error) {
	return r.comments.Has(ctx, lessonID, userID)
}

func (r *AggregateRepository) Save(ctx context.Context, p progress.LessonProgress) error {
	if err := r.comments.Save(ctx, p); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	found, err := r.tables.Get(ctx, p.LessonID(), p.UserID())
	if err != nil {
		return err
	}
	if found == nil {
		r.log.Debug("No tables row to mirror", "lesson_id", p.LessonID(), "user_id", p.UserID())
		return nil
	}
	mirror := progress.NewTablesLessonProgress(progress.Fields{
		ID:          found.ID(),
		SubjectID:   found.LessonID(),
		UserID:      found.UserID(),
		Status:      p.Status(),
		StartedAt:   p.StartedAt(),
		CompletedAt: p.CompletedAt(),
		CreatedAt:   found.CreatedAt(),
		UpdatedAt:   time.Now(),
	})
	return r.tables.Save(ctx, mirror)
}

func (r *AggregateRepository) Delete(ctx context.Context, p progress.LessonProgress) error {
	if err := r.comments.Delete(ctx, p); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	found, err := r.tables.Get(ctx, p.LessonID(), p.UserID())
	if err != nil || found == nil {
		return err
	}
	return r.tables.Delete(ctx, found)
}

func (r *AggregateRepository) DeleteForLesson(ctx context.Context, lessonID int64) error {
	if err := r.comments.DeleteForLesson(ctx, lessonID); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	return r.tables.DeleteForLesson(ctx, lessonID)
}

func (r *AggregateRepository) DeleteForUser(ctx context.Context, userID int64) error {
	if err := r.comments.DeleteForUser(ctx, userID); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	return r.tables.DeleteForUser(ctx, userID)
}
