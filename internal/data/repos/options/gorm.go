package options

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/lms-progress/internal/domain/options"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type gormStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormStore(db *gorm.DB, baseLog *logger.Logger) Store {
	return &gormStore{
		db:  db,
		log: baseLog.With("repo", "OptionsRepo", "backend", "db"),
	}
}

func (s *gormStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	var row domain.Option
	err := s.db.WithContext(ctx).
		Where("option_name = ?", key).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return false, err
	}
	if row.Name == "" {
		return false, nil
	}
	return true, decode(key, row.Value, dst)
}

func (s *gormStore) Set(ctx context.Context, key string, value any) error {
	raw, err := encode(key, value)
	if err != nil {
		return err
	}
	row := domain.Option{Name: key, Value: datatypes.JSON(raw), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "option_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"option_value", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *gormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("option_name = ?", key).
		Delete(&domain.Option{}).Error
}
