package lesson

import (
	"fmt"

	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/progress/store"
)

type Factory struct {
	comments  *CommentsRepository
	tables    *TablesRepository
	useTables bool
	log       *logger.Logger
}

func NewFactory(deps store.Deps) *Factory {
	return &Factory{
		comments:  NewCommentsRepository(deps),
		tables:    NewTablesRepository(deps),
		useTables: deps.UseTables,
		log:       deps.Log,
	}
}

// Create returns the aggregate repository.
func (f *Factory) Create() Repository {
	return NewAggregateRepository(f.comments, f.tables, f.useTables, f.log)
}

// CreateFor returns the repository that owns the storage behind p.
func (f *Factory) CreateFor(p progress.LessonProgress) (Repository, error) {
	switch p.(type) {
	case *progress.CommentsLessonProgress:
		return f.comments, nil
	case *progress.TablesLessonProgress:
		return f.tables, nil
	default:
		return nil, fmt.Errorf("lesson repository for %T: %w", p, progress.ErrUnsupportedProgress)
	}
}

func (f *Factory) Comments() *CommentsRepository { return f.comments }
func (f *Factory) Tables() *TablesRepository     { return f.tables }
