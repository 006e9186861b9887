package installer

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	optionsrepo "github.com/yungbote/lms-progress/internal/data/repos/options"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// Eraser removes everything the installer created.
type Eraser struct {
	db      *gorm.DB
	schema  *Schema
	options optionsrepo.Store
	log     *logger.Logger
}

func NewEraser(db *gorm.DB, schema *Schema, options optionsrepo.Store, baseLog *logger.Logger) *Eraser {
	return &Eraser{db: db, schema: schema, options: options, log: baseLog.With("component", "Eraser")}
}

// DropTables drops the progress tables and forgets the installed version.
// It returns the tables that existed and were dropped.
func (e *Eraser) DropTables(ctx context.Context) ([]string, error) {
	m := e.db.WithContext(ctx).Migrator()
	var dropped []string
	for _, name := range e.schema.Tables() {
		if !m.HasTable(name) {
			continue
		}
		if err := m.DropTable(name); err != nil {
			return dropped, fmt.Errorf("drop %s: %w", name, err)
		}
		dropped = append(dropped, name)
	}
	if err := e.options.Delete(ctx, VersionOption); err != nil {
		return dropped, err
	}
	e.log.Info("Dropped progress tables", "tables", dropped)
	return dropped, nil
}
