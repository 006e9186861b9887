package quiz

import (
	"context"
	"fmt"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lms-progress/internal/pkg/errors"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/progress/store"
)

type CommentsRepository struct {
	comments  *store.Comments
	activity  activity.Repo
	structure structure.Repo
	log       *logger.Logger
}

func NewCommentsRepository(deps store.Deps) *CommentsRepository {
	log := deps.Log.With("repo", "CommentsQuizProgressRepository")
	return &CommentsRepository{
		comments:  deps.Comments(log),
		activity:  deps.Activity,
		structure: deps.Structure,
		log:       log,
	}
}

func (r *CommentsRepository) Create(ctx context.Context, quizID, userID int64) (progress.QuizProgress, error) {
	dbc := dbctx.With(ctx)
	lessonID, err := r.structure.QuizLessonID(dbc, quizID)
	if err != nil {
		return nil, err
	}
	if lessonID == 0 {
		return nil, fmt.Errorf("%w: quiz %d has no lesson", pkgerrors.ErrProgressNotCreated, quizID)
	}
	if err := r.comments.Start(dbc, lessonID, userID, legacy.LessonStatusType, nil); err != nil {
		return nil, fmt.Errorf("%w: quiz %d user %d: %v", pkgerrors.ErrProgressNotCreated, quizID, userID, err)
	}
	p, err := r.load(dbc, quizID, lessonID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: quiz %d user %d", pkgerrors.ErrProgressNotCreated, quizID, userID)
	}
	return p, nil
}

func (r *CommentsRepository) Get(ctx context.Context, quizID, userID int64) (progress.QuizProgress, error) {
	dbc := dbctx.With(ctx)
	lessonID, err := r.structure.QuizLessonID(dbc, quizID)
	if err != nil || lessonID == 0 {
		return nil, err
	}
	p, err := r.load(dbc, quizID, lessonID, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}

func (r *CommentsRepository) load(dbc dbctx.Context, quizID, lessonID, userID int64) (*progress.CommentsQuizProgress, error) {
	f, meta, err := r.comments.Load(dbc, lessonID, userID, legacy.LessonStatusType)
	if err != nil || f == nil {
		return nil, err
	}
	f.SubjectID = quizID
	f.ParentID = &lessonID
	lessonStatus, lessonCompleted := f.Status, f.CompletedAt
	f.Status = quizStatus(f.Status)
	if !f.Status.IsTerminalSuccess() {
		f.CompletedAt = nil
	}
	return progress.NewCommentsQuizProgress(*f, lessonID, meta).WithLessonState(lessonStatus, lessonCompleted), nil
}

// quizStatus maps a lesson status onto the quiz states. A lesson that is
// merely complete or started reads as an in-progress quiz.
func quizStatus(s progress.Status) progress.Status {
	switch s {
	case progress.StatusPassed, progress.StatusGraded, progress.StatusUngraded, progress.StatusFailed:
		return s
	default:
		return progress.StatusInProgress
	}
}

func (r *CommentsRepository) Has(ctx context.Context, quizID, userID int64) (bool, error) {
	dbc := dbctx.With(ctx)
	lessonID, err := r.structure.QuizLessonID(dbc, quizID)
	if err != nil || lessonID == 0 {
		return false, err
	}
	return r.comments.Has(dbc, lessonID, userID, legacy.LessonStatusType)
}

func (r *CommentsRepository) Save(ctx context.Context, p progress.QuizProgress) error {
	qp, ok := p.(*progress.CommentsQuizProgress)
	if !ok {
		return fmt.Errorf("comments quiz repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.comments.Save(dbctx.With(ctx), qp.LessonID(), qp.UserID(), legacy.LessonStatusType, qp.LessonFields(), qp.Metadata())
}

// Delete drops the quiz submission data from the lesson comment and leaves the
// lesson status alone.
func (r *CommentsRepository) Delete(ctx context.Context, p progress.QuizProgress) error {
	qp, ok := p.(*progress.CommentsQuizProgress)
	if !ok {
		return fmt.Errorf("comments quiz repository: %w", progress.ErrUnsupportedProgress)
	}
	_, err := r.activity.DeleteMeta(dbctx.With(ctx), activity.Filter{CommentID: qp.ID()}, legacy.QuizMetaKeys)
	return err
}

func (r *CommentsRepository) DeleteForQuiz(ctx context.Context, quizID int64) error {
	dbc := dbctx.With(ctx)
	lessonID, err := r.structure.QuizLessonID(dbc, quizID)
	if err != nil || lessonID == 0 {
		return err
	}
	_, err = r.activity.DeleteMeta(dbc, activity.Filter{PostID: lessonID, Type: legacy.LessonStatusType}, legacy.QuizMetaKeys)
	return err
}

func (r *CommentsRepository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.activity.DeleteMeta(dbctx.With(ctx), activity.Filter{UserID: userID, Type: legacy.LessonStatusType}, legacy.QuizMetaKeys)
	return err
}
