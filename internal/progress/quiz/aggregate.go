package quiz

import (
	"context"
	"time"

	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

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
		log:       baseLog.With("repo", "AggregateQuizProgressRepository"),
	}
}

func (r *AggregateRepository) Create(ctx context.Context, quizID, userID int64) (progress.QuizProgress, error) {
	p, err := r.comments.Create(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}
	if r.useTables {
		// The legacy write is authoritative; a failed mirror is logged, not returned.
		if _, err := r.tables.Create(ctx, quizID, userID); err != nil {
			r.log.Warn("Tables create failed after legacy write", "quiz_id", quizID, "user_id", userID, "error", err)
		}
	}
	return p, nil
}

func (r *AggregateRepository) Get(ctx context.Context, quizID, userID int64) (progress.QuizProgress, error) {
	return r.comments.Get(ctx, quizID, userID)
}

func (r *AggregateRepository) Has(ctx context.Context, quizID, userID int64) (bool, error) {
	return r.comments.Has(ctx, quizID, userID)
}

func (r *AggregateRepository) Save(ctx context.Context, p progress.QuizProgress) error {
	if err := r.comments.Save(ctx, p); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	if cp, ok := p.(*progress.CommentsQuizProgress); ok && !cp.Transitioned() {
		// Nothing quiz-specific changed; the lesson comment was written back as read.
		return nil
	}
	found, err := r.tables.Get(ctx, p.QuizID(), p.UserID())
	if err != nil {
		return err
	}
	if found == nil {
		r.log.Debug("No tables row to mirror", "quiz_id", p.QuizID(), "user_id", p.UserID())
		return nil
	}
	mirror := progress.NewTablesQuizProgress(progress.Fields{
		ID:          found.ID(),
		SubjectID:   found.QuizID(),
		UserID:      found.UserID(),
		Status:      p.Status(),
		StartedAt:   p.StartedAt(),
		CompletedAt: p.CompletedAt(),
		CreatedAt:   found.CreatedAt(),
		UpdatedAt:   time.Now(),
	})
	return r.tables.Save(ctx, mirror)
}

func (r *AggregateRepository) Delete(ctx context.Context, p progress.QuizProgress) error {
	if err := r.comments.Delete(ctx, p); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	found, err := r.tables.Get(ctx, p.QuizID(), p.UserID())
	if err != nil || found == nil {
		return err
	}
	return r.tables.Delete(ctx, found)
}

func (r *AggregateRepository) DeleteForQuiz(ctx context.Context, quizID int64) error {
	if err := r.comments.DeleteForQuiz(ctx, quizID); err != nil {
		return err
	}
	if !r.useTables {
		return nil
	}
	return r.tables.DeleteForQuiz(ctx, quizID)
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
