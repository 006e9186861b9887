package tables

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/lms-progress/internal/domain/tables"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type ProgressRepo interface {
	Create(dbc dbctx.Context, row *tables.Progress) (*tables.Progress, error)
	// CreateIfAbsent inserts row unless (post_id, user_id, type) exists and
	// reports whether a row was written.
	CreateIfAbsent(dbc dbctx.Context, row *tables.Progress) (bool, error)
	Find(dbc dbctx.Context, postID, userID int64, progressType string) (*tables.Progress, error)
	Exists(dbc dbctx.Context, postID, userID int64, progressType string) (bool, error)
	UpdateState(dbc dbctx.Context, row *tables.Progress) error
	Delete(dbc dbctx.Context, id int64) error
	DeleteByPost(dbc dbctx.Context, postID int64, progressType string) (int64, error)
	DeleteByUser(dbc dbctx.Context, userID int64, progressType string) (int64, error)
	CountByType(dbc dbctx.Context, progressType string) (int64, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{
		db:  db,
		log: baseLog.With("repo", "ProgressTablesRepo"),
	}
}

func (r *progressRepo) Create(dbc dbctx.Context, row *tables.Progress) (*tables.Progress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil, errors.New("nil progress row")
	}
	if err := transaction.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *progressRepo) CreateIfAbsent(dbc dbctx.Context, row *tables.Progress) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *progressRepo) Find(dbc dbctx.Context, postID, userID int64, progressType string) (*tables.Progress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row tables.Progress
	err := transaction.WithContext(dbc.Ctx).
		Where("post_id = ? AND user_id = ? AND type = ?", postID, userID, progressType).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *progressRepo) Exists(dbc dbctx.Context, postID, userID int64, progressType string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&tables.Progress{}).
		Where("post_id = ? AND user_id = ? AND type = ?", postID, userID, progressType).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// UpdateState writes the mutable columns of row by primary key.
func (r *progressRepo) UpdateState(dbc dbctx.Context, row *tables.Progress) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.ID == 0 {
		return errors.New("progress row has no id")
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&tables.Progress{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"status":       row.Status,
			"started_at":   row.StartedAt,
			"completed_at": row.CompletedAt,
			"updated_at":   row.UpdatedAt,
		}).Error
}

func (r *progressRepo) Delete(dbc dbctx.Context, id int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&tables.Progress{}).Error
}

func (r *progressRepo) DeleteByPost(dbc dbctx.Context, postID int64, progressType string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("post_id = ? AND type = ?", postID, progressType).
		Delete(&tables.Progress{})
	return res.RowsAffected, res.Error
}

func (r *progressRepo) DeleteByUser(dbc dbctx.Context, userID int64, progressType string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND type = ?", userID, progressType).
		Delete(&tables.Progress{})
	return res.RowsAffected, res.Error
}

func (r *progressRepo) CountByType(dbc dbctx.Context, progressType string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&tables.Progress{}).
		Where("type = ?", progressType).
		Count(&n).Error
	return n, err
}
