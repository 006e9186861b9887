package installer

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	optionsrepo "github.com/yungbote/lms-progress/internal/data/repos/options"
	"github.com/yungbote/lms-progress/internal/domain/tables"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

const (
	// VersionOption holds the schema version that was last installed.
	VersionOption = "sensei-lms-db-version"
	// SchemaVersion is bumped whenever a progress table changes shape.
	SchemaVersion = "4.16.0"
)

type Schema struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSchema(db *gorm.DB, baseLog *logger.Logger) *Schema {
	return &Schema{db: db, log: baseLog.With("component", "Schema")}
}

// Create creates or alters the progress tables and their indexes.
func (s *Schema) Create(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(tables.All()...); err != nil {
		return fmt.Errorf("create progress tables: %w", err)
	}
	return nil
}

// Tables lists the table names owned by the schema.
func (s *Schema) Tables() []string {
	return []string{
		tables.Progress{}.TableName(),
		tables.QuizSubmission{}.TableName(),
		tables.QuizAnswer{}.TableName(),
		tables.QuizGrade{}.TableName(),
	}
}

type Installer struct {
	schema  *Schema
	options optionsrepo.Store
	version string
	log     *logger.Logger
}

func New(schema *Schema, options optionsrepo.Store, baseLog *logger.Logger) *Installer {
	return &Installer{
		schema:  schema,
		options: options,
		version: SchemaVersion,
		log:     baseLog.With("component", "Installer"),
	}
}

// Install creates the schema when the stored version differs from the code
// version. It is safe to call on every start.
func (i *Installer) Install(ctx context.Context) error {
	current, err := i.InstalledVersion(ctx)
	if err != nil {
		return err
	}
	if current == i.version {
		i.log.Debug("Progress schema up to date", "version", current)
		return nil
	}
	i.log.Info("Installing progress schema", "from", current, "to", i.version)
	if err := i.schema.Create(ctx); err != nil {
		return err
	}
	if err := i.options.Set(ctx, VersionOption, i.version); err != nil {
		return fmt.Errorf("store schema version: %w", err)
	}
	return nil
}

func (i *Installer) InstalledVersion(ctx context.Context) (string, error) {
	var v string
	if _, err := i.options.Get(ctx, VersionOption, &v); err != nil {
		return "", fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (i *Installer) IsInstalled(ctx context.Context) (bool, error) {
	v, err := i.InstalledVersion(ctx)
	return v != "", err
}
