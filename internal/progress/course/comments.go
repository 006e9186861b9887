package course

import (
	"context"
	"fmt"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lms-progress/internal/pkg/errors"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/progress/store"
)

type CommentsRepository struct {
	comments *store.Comments
	activity activity.Repo
	log      *logger.Logger
}

func NewCommentsRepository(deps store.Deps) *CommentsRepository {
	log := deps.Log.With("repo", "CommentsCourseProgressRepository")
	return &CommentsRepository{
		comments: deps.Comments(log),
		activity: deps.Activity,
		log:      log,
	}
}

func (r *CommentsRepository) Create(ctx context.Context, courseID, userID int64) (progress.CourseProgress, error) {
	dbc := dbctx.With(ctx)
	extra := map[string]string{"percent": "0", "complete": "0"}
	if err := r.comments.Start(dbc, courseID, userID, legacy.CourseStatusType, extra); err != nil {
		return nil, fmt.Errorf("%w: course %d user %d: %v", pkgerrors.ErrProgressNotCreated, courseID, userID, err)
	}
	p, err := r.get(dbc, courseID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: course %d user %d", pkgerrors.ErrProgressNotCreated, courseID, userID)
	}
	return p, nil
}

func (r *CommentsRepository) Get(ctx context.Context, courseID, userID int64) (progress.CourseProgress, error) {
	p, err := r.get(dbctx.With(ctx), courseID, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}

func (r *CommentsRepository) get(dbc dbctx.Context, courseID, userID int64) (*progress.CommentsCourseProgress, error) {
	f, meta, err := r.comments.Load(dbc, courseID, userID, legacy.CourseStatusType)
	if err != nil || f == nil {
		return nil, err
	}
	return progress.NewCommentsCourseProgress(*f, meta), nil
}

func (r *CommentsRepository) Has(ctx context.Context, courseID, userID int64) (bool, error) {
	return r.comments.Has(dbctx.With(ctx), courseID, userID, legacy.CourseStatusType)
}

func (r *CommentsRepository) Save(ctx context.Context, p progress.CourseProgress) error {
	cp, ok := p.(*progress.CommentsCourseProgress)
	if !ok {
		return fmt.Errorf("comments course repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.comments.Save(dbctx.With(ctx), cp.CourseID(), cp.UserID(), legacy.CourseStatusType, cp.Fields(), cp.Metadata())
}

func (r *CommentsRepository) Delete(ctx context.Context, p progress.CourseProgress) error {
	cp, ok := p.(*progress.CommentsCourseProgress)
	if !ok {
		return fmt.Errorf("comments course repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.activity.Delete(dbctx.With(ctx), cp.ID())
}

func (r *CommentsRepository) DeleteForCourse(ctx context.Context, courseID int64) error {
	_, err := r.activity.DeleteByPost(dbctx.With(ctx), courseID, legacy.CourseStatusType)
	return err
}

func (r *CommentsRepository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.activity.DeleteByUser(dbctx.With(ctx), userID, legacy.CourseStatusType)
	return err
}
