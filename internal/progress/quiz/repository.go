// Package quiz stores quiz progress. In the legacy store a quiz has no
// comment of its own; its state is kept on the lesson status comment of the
// lesson that owns the quiz.
package quiz

import (
	"context"

	"github.com/yungbote/lms-progress/internal/domain/progress"
)

type Repository interface {
	Create(ctx context.Context, quizID, userID int64) (progress.QuizProgress, error)
	Get(ctx context.Context, quizID, userID int64) (progress.QuizProgress, error)
	Has(ctx context.Context, quizID, userID int64) (bool, error)
	Save(ctx context.Context, p progress.QuizProgress) error
	Delete(ctx context.Context, p progress.QuizProgress) error
	DeleteForQuiz(ctx context.Context, quizID int64) error
	DeleteForUser(ctx context.Context, userID int64) error
}
