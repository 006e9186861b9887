package lesson

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
	log := deps.Log.With("repo", "CommentsLessonProgressRepository")
	return &CommentsRepository{
		comments: deps.Comments(log),
		activity: deps.Activity,
		log:      log,
	}
}

func (r *CommentsRepository) Create(ctx context.Context, lessonID, userID int64) (progress.LessonProgress, error) {
	dbc := dbctx.With(ctx)
	if err := r.comments.Start(dbc, lessonID, userID, legacy.LessonStatusType, nil); err != nil {
		return nil, fmt.Errorf("%w: lesson %d user %d: %v", pkgerrors.ErrProgressNotCreated, lessonID, userID, err)
	}
	p, err := r.get(dbc, lessonID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: lesson %d user %d", pkgerrors.ErrProgressNotCreated, lessonID, userID)
	}
	return p, nil
}

func (r *CommentsRepository) Get(ctx context.Context, lessonID, userID int64) (progress.LessonProgress, error) {
	p, err := r.get(dbctx.With(ctx), lessonID, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}

func (r *CommentsRepository) get(dbc dbctx.Context, lessonID, userID int64) (*progress.CommentsLessonProgress, error) {
	f, meta, err := r.comments.Load(dbc, lessonID, userID, legacy.LessonStatusType)
	if err != nil || f == nil {
		return nil, err
	}
	return progress.NewCommentsLessonProgress(*f, meta), nil
}

func (r *CommentsRepository) Has(ctx context.Context, lessonID, userID int64) (bool, error) {
	return r.comments.Has(dbctx.With(ctx), lessonID, userID, legacy.LessonStatusType)
}

func (r *CommentsRepository) Save(ctx context.Context, p progress.LessonProgress) error {
	cp, ok := p.(*progress.CommentsLessonProgress)
	if !ok {
		return fmt.Errorf("comments lesson repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.comments.Save(dbctx.With(ctx), cp.LessonID(), cp.UserID(), legacy.LessonStatusType, cp.Fields(), cp.Metadata())
}

func (r *CommentsRepository) Delete(ctx context.Context, p progress.LessonProgress) error {
	cp, ok := p.(*progress.CommentsLessonProgress)
	if !ok {
		return fmt.Errorf("comments lesson repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.activity.Delete(dbctx.With(ctx), cp.ID())
}

func (r *CommentsRepository) DeleteForLesson(ctx context.Context, lessonID int64) error {
	_, err := r.activity.DeleteByPost(dbctx.With(ctx), lessonID, legacy.LessonStatusType)
	return err
}

func (r *CommentsRepository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.activity.DeleteByUser(dbctx.With(ctx), userID, legacy.LessonStatusType)
	return err
}
