package course

import (
	"context"
	"fmt"

	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lms-progress/internal/pkg/errors"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/progress/store"
)

type TablesRepository struct {
	tables *store.Tables
	rows   tablesrepo.ProgressRepo
	log    *logger.Logger
}

func NewTablesRepository(deps store.Deps) *TablesRepository {
	return &TablesRepository{
		tables: deps.TablesStore(),
		rows:   deps.Tables,
		log:    deps.Log.With("repo", "TablesCourseProgressRepository"),
	}
}

func (r *TablesRepository) Create(ctx context.Context, courseID, userID int64) (progress.CourseProgress, error) {
	f, err := r.tables.Create(dbctx.With(ctx), courseID, userID, progress.KindCourse, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: course %d user %d: %v", pkgerrors.ErrProgressNotCreated, courseID, userID, err)
	}
	return progress.NewTablesCourseProgress(*f), nil
}

func (r *TablesRepository) Get(ctx context.Context, courseID, userID int64) (progress.CourseProgress, error) {
	p, err := r.get(ctx, courseID, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}

func (r *TablesRepository) get(ctx context.Context, courseID, userID int64) (*progress.TablesCourseProgress, error) {
	f, err := r.tables.Get(dbctx.With(ctx), courseID, userID, progress.KindCourse)
	if err != nil || f == nil {
		return nil, err
	}
	return progress.NewTablesCourseProgress(*f), nil
}

func (r *TablesRepository) Has(ctx context.Context, courseID, userID int64) (bool, error) {
	return r.tables.Has(dbctx.With(ctx), courseID, userID, progress.KindCourse)
}

func (r *TablesRepository) Save(ctx context.Context, p progress.CourseProgress) error {
	tp, ok := p.(*progress.TablesCourseProgress)
	if !ok {
		return fmt.Errorf("tables course repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.tables.Save(dbctx.With(ctx), tp.Fields())
}

func (r *TablesRepository) Delete(ctx context.Context, p progress.CourseProgress) error {
	tp, ok := p.(*progress.TablesCourseProgress)
	if !ok {
		return fmt.Errorf("tables course repository: %w", progress.ErrUnsupportedProgress)
	}
	return r.rows.Delete(dbctx.With(ctx), tp.ID())
}

func (r *TablesRepository) DeleteForCourse(ctx context.Context, courseID int64) error {
	_, err := r.rows.DeleteByPost(dbctx.With(ctx), courseID, string(progress.KindCourse))
	return err
}

func (r *TablesRepository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.rows.DeleteByUser(dbctx.With(ctx), userID, string(progress.KindCourse))
	return err
}
