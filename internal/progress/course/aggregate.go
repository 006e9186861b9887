package course

import (
	"context"
	"time"

	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// AggregateRepository reads from the comments store and mirrors writes into
// the tables store when useTables is on. A tables row is only ever created by
// Create; Save updates an existing row and never backfills a missing one.
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
		log:       baseLog.With("repo", "AggregateCourseProgressRepository"),
	}
}

func (r *AggregateRepository) Create(ctx context.Context, courseID, userID int64) (progress.CourseProgress, error) {
	p, err := r.comments.Create(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}
	if r.useTables {
		// The legacy write is authoritative; a failed mirror is logged, not returned.
		if _, err := r.tables.Create(ctx, courseID, userID); err != nil {
			r.log.Warn("Tables create failed after legacy write", "course_id", courseID, "user_id", userID, "error", err)
		}
	}
	return p, nil
}

func (r *AggregateRepository) Get(ctx context.Context, courseID, userID int64) (progress.CourseProgress, error) {
	return r.comments.Get(ctx, courseID, userID)
}

func (r *AggregateRepository) Has(ctx context.Context, courseID, userID int64) (bool, error) {
	return r.comments.Has(ctx, courseID, userID)
}

func (r *AggregateRepository) Save(ctx context.Context, p progress.CourseProgress) error {
	if err := r.comments.Save(ctx, p); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	found, err := r.tables.Get(ctx, p.CourseID(), p.UserID())
	if err != nil {
		return err
	}
	if found == nil {
		r.log.Debug("No tables row to mirror", "course_id", p.CourseID(), "user_id", p.UserID())
		return nil
	}
	mirror := progress.NewTablesCourseProgress(progress.Fields{
		ID:          found.ID(),
		SubjectID:   found.CourseID(),
		UserID:      found.UserID(),
		Status:      p.Status(),
		StartedAt:   p.StartedAt(),
		CompletedAt: p.CompletedAt(),
		CreatedAt:   found.CreatedAt(),
		UpdatedAt:   time.Now(),
	})
	return r.tables.Save(ctx, mirror)
}

func (r *AggregateRepository) Delete(ctx context.Context, p progress.CourseProgress) error {
	if err := r.comments.Delete(ctx, p); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	found, err := r.tables.Get(ctx, p.CourseID(), p.UserID())
	if err != nil || found == nil {
		return err
	}
	return r.tables.Delete(ctx, found)
}

func (r *AggregateRepository) DeleteForCourse(ctx context.Context, courseID int64) error {
	if err := r.comments.DeleteForCourse(ctx, courseID); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	return r.tables.DeleteForCourse(ctx, courseID)
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
