package quiz

import (
	"context"
	"fmt"

	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lms-progress/internal/pkg/errors"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/progress/store"
)

type TablesRepository struct {
	tables    *store.Tables
	rows      tablesrepo.ProgressRepo
	structure structure.Repo
	log       *logger.Logger
}

func NewTablesRepository(deps store.Deps) *TablesRepository {
	return &TablesRepository{
		tables:    deps.TablesStore(),
		rows:      deps.Tables,
		structure: deps.Structure,
		log:       deps.Log.With("repo", "TablesQuizProgressRepository"),
	}
}

func (r *TablesRepository) Create(ctx context.Context, quizID, userID int64) (progress.QuizProgress, error) {
	dbc := dbctx.With(ctx)
	var parent *int64
	lessonID, err := r.structure.QuizLessonID(dbc, quizID)
	if err != nil {
		return nil, err
	}
	if lessonID != 0 {
		parent = &lessonID
	}
	f, err := r.tables.Create(dbc, quizID, userID, progress.KindQuiz, parent)
	if err != nil {
		return nil, fmt.Errorf("%w: quiz %d user %d: %v", pkgerrors.ErrProgressNotCreated, quizID, userID, err)
	}
	return progress.NewTablesQuizProgress(*f), nil
}

func (r *TablesRepository) Get(ctx context.Context, quizID, userID int64) (progress.QuizProgress, error) {
	p, err := r.get(ctx, quizID, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}

func (r *TablesRepository) get(ctx context.Context, quizID, userID int64) (*progress.TablesQuizProgress, error) {
	f, err := r.tables.Get(dbctx.With(ctx), quizID, userID, progress.KindQuiz)
	if err != nil || f == nil {
		return nil, err
	}
	return progress.NewTablesQuizProgress(*f), nil
}

func (r *TablesRepository) Has(ctx context.Context, quizID, userID int64) (bool, error) {
	return r.tables.Has(dbctx.With(ctx), quizID, userID, progress.KindQuiz)
}

func (r *TablesRepository) Save(ctx context.Context, p progress.QuizProgress) error {
	tp, ok := p.(*progress.TablesQuizProgress)
	if !ok {
		return fmt.Errorf("tables quiz repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.tables.Save(dbctx.With(ctx), tp.Fields())
}

func (r *TablesRepository) Delete(ctx context.Context, p progress.QuizProgress) error {
	tp, ok := p.(*progress.TablesQuizProgress)
	if !ok {
		return fmt.Errorf("tables quiz repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.rows.Delete(dbctx.With(ctx), tp.ID())
}

func (r *TablesRepository) DeleteForQuiz(ctx context.Context, quizID int64) error {
	_, err := r.rows.DeleteByPost(dbctx.With(ctx), quizID, string(progress.KindQuiz))
	return err
}

func (r *TablesRepository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.rows.DeleteByUser(dbctx.With(ctx), userID, string(progress.KindQuiz))
	return err
}
