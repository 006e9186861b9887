package lesson

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
		log:       deps.Log.With("repo", "TablesLessonProgressRepository"),
	}
}

func (r *TablesRepository) Create(ctx context.Context, lessonID, userID int64) (progress.LessonProgress, error) {
	dbc := dbctx.With(ctx)
	var parent *int64
	courseID, err := r.structure.LessonCourseID(dbc, lessonID)
	if err != nil {
		return nil, err
	}
	if courseID != 0 {
		parent = &courseID
	}
	f, err := r.tables.Create(dbc, lessonID, userID, progress.KindLesson, parent)
	if err != nil {
		return nil, fmt.Errorf("%w: lesson %d user %d: %v", pkgerrors.ErrProgressNotCreated, lessonID, userID, err)
	}
	return progress.NewTablesLessonProgress(*f), nil
}

func (r *TablesRepository) Get(ctx context.Context, lessonID, userID int64) (progress.LessonProgress, error) {
	p, err := r.get(ctx, lessonID, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}

func (r *TablesRepository) get(ctx context.Context, lessonID, userID int64) (*progress.TablesLessonProgress, error) {
	f, err := r.tables.Get(dbctx.With(ctx), lessonID, userID, progress.KindLesson)
	if err != nil || f == nil {
		return nil, err
	}
	return progress.NewTablesLessonProgress(*f), nil
}

func (r *TablesRepository) Has(ctx context.Context, lessonID, userID int64) (bool, error) {
	return r.tables.Has(dbctx.With(ctx), lessonID, userID, progress.KindLesson)
}

func (r *TablesRepository) Save(ctx context.Context, p progress.LessonProgress) error {
	tp, ok := p.(*progress.TablesLessonProgress)
	if !ok {
		return fmt.Errorf("tables lesson repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.tables.Save(dbctx.With(ctx), tp.Fields())
}

func (r *TablesRepository) Delete(ctx context.Context, p progress.LessonProgress) error {
	tp, ok := p.(*progress.TablesLessonProgress)
	if !ok {
		return fmt.Errorf("tables lesson repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.rows.Delete(dbctx.With(ctx), tp.ID())
}

func (r *TablesRepository) DeleteForLesson(ctx context.Context, lessonID int64) error {
	_, err := r.rows.DeleteByPost(dbctx.With(ctx), lessonID, string(progress.KindLesson))
	return err
}

func (r *TablesRepository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.rows.DeleteByUser(dbctx.With(ctx), userID, string(progress.KindLesson))
	return err
}
