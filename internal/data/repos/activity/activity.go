package activity

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// Status is a full write of one status comment.
type Status struct {
	PostID int64
	UserID int64
	Type   string
	Status string
	// Metadata keys are upserted; keys not listed are left alone.
	Metadata map[string]string
	// Date overrides the comment date; zero means now.
	Date time.Time
}

// Filter selects status comments. Zero fields are ignored; at least one must be set.
type Filter struct {
	CommentID int64
	PostID    int64
	UserID    int64
	Type      string
}

// Repo is the legacy activity store: one status comment per (post, user, type)
// with free-form comment meta.
type Repo interface {
	UpdateStatus(dbc dbctx.Context, st Status) (int64, error)
	Find(dbc dbctx.Context, postID, userID int64, commentType string) (*legacy.Comment, error)
	Count(dbc dbctx.Context, postID, userID int64, commentType string) (int64, error)
	Meta(dbc dbctx.Context, commentID int64) (map[string]string, error)
	MetaValue(dbc dbctx.Context, commentID int64, key string) (string, bool, error)
	SetMeta(dbc dbctx.Context, commentID int64, values map[string]string) error
	DeleteMeta(dbc dbctx.Context, filter Filter, keys []string) (int64, error)
	Delete(dbc dbctx.Context, commentID int64) error
	DeleteByPost(dbc dbctx.Context, postID int64, commentType string) (int64, error)
	DeleteByUser(dbc dbctx.Context, userID int64, commentType string) (int64, error)
	ListAfterID(dbc dbctx.Context, afterID int64, types []string, limit int) ([]*legacy.Comment, error)
	ListPage(dbc dbctx.Context, types []string, offset, limit int) ([]*legacy.Comment, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{
		db:  db,
		log: baseLog.With("repo", "ActivityRepo"),
	}
}

func (r *repo) UpdateStatus(dbc dbctx.Context, st Status) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if st.PostID <= 0 || st.UserID <= 0 || st.Type == "" {
		return 0, fmt.Errorf("update status: post, user and type are required")
	}
	date := st.Date
	if date.IsZero() {
		date = time.Now()
	}

	var commentID int64
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var existing legacy.Comment
		err := txx.
			Where("comment_post_id = ? AND user_id = ? AND comment_type = ?", st.PostID, st.UserID, st.Type).
			Order("comment_id DESC").
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c := &legacy.Comment{
				CommentPostID:   st.PostID,
				UserID:          st.UserID,
				CommentType:     st.Type,
				CommentApproved: st.Status,
				CommentDate:     date,
				CommentDateGMT:  date.UTC(),
			}
			if err := txx.Create(c).Error; err != nil {
				return err
			}
			commentID = c.ID
		case err != nil:
			return err
		default:
			if err := txx.Model(&legacy.Comment{}).
				Where("comment_id = ?", existing.ID).
				Updates(map[string]interface{}{
					"comment_approved": st.Status,
					"comment_date":     date,
					"comment_date_gmt": date.UTC(),
				}).Error; err != nil {
				return err
			}
			commentID = existing.ID
		}
		return setMeta(txx, commentID, st.Metadata)
	})
	if err != nil {
		return 0, err
	}
	return commentID, nil
}

func (r *repo) Find(dbc dbctx.Context, postID, userID int64, commentType string) (*legacy.Comment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var c legacy.Comment
	err := transaction.WithContext(dbc.Ctx).
		Where("comment_post_id = ? AND user_id = ? AND comment_type = ?", postID, userID, commentType).
		Order("comment_id DESC").
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) Count(dbc dbctx.Context, postID, userID int64, commentType string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&legacy.Comment{}).
		Where("comment_post_id = ? AND user_id = ? AND comment_type = ?", postID, userID, commentType).
		Count(&n).Error
	return n, err
}

func (r *repo) Meta(dbc dbctx.Context, commentID int64) (map[string]string, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []legacy.CommentMeta
	if err := transaction.WithContext(dbc.Ctx).
		Where("comment_id = ?", commentID).
		Order("meta_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, m := range rows {
		out[m.MetaKey] = m.MetaValue
	}
	return out, nil
}

func (r *repo) MetaValue(dbc dbctx.Context, commentID int64, key string) (string, bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var m legacy.CommentMeta
	err := transaction.WithContext(dbc.Ctx).
		Where("comment_id = ? AND meta_key = ?", commentID, key).
		Order("meta_id DESC").
		Limit(1).
		Find(&m).Error
	if err != nil {
		return "", false, err
	}
	if m.ID == 0 {
		return "", false, nil
	}
	return m.MetaValue, true, nil
}

func (r *repo) SetMeta(dbc dbctx.Context, commentID int64, values map[string]string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		return setMeta(txx, commentID, values)
	})
}

func (r *repo) DeleteMeta(dbc dbctx.Context, filter Filter, keys []string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(keys) == 0 {
		return 0, nil
	}
	q := transaction.WithContext(dbc.Ctx).Model(&legacy.Comment{})
	scoped := false
	if filter.CommentID != 0 {
		q = q.Where("comment_id = ?", filter.CommentID)
		scoped = true
	}
	if filter.PostID != 0 {
		q = q.Where("comment_post_id = ?", filter.PostID)
		scoped = true
	}
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
		scoped = true
	}
	if filter.Type != "" {
		q = q.Where("comment_type = ?", filter.Type)
	}
	if !scoped {
		return 0, fmt.Errorf("delete meta: comment, post or user is required")
	}
	var ids []int64
	if err := q.Pluck("comment_id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("comment_id IN ? AND meta_key IN ?", ids, keys).
		Delete(&legacy.CommentMeta{})
	return res.RowsAffected, res.Error
}

func (r *repo) Delete(dbc dbctx.Context, commentID int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("comment_id = ?", commentID).Delete(&legacy.CommentMeta{}).Error; err != nil {
			return err
		}
		return txx.Where("comment_id = ?", commentID).Delete(&legacy.Comment{}).Error
	})
}

func (r *repo) DeleteByPost(dbc dbctx.Context, postID int64, commentType string) (int64, error) {
	return r.deleteWhere(dbc, "comment_post_id = ? AND comment_type = ?", postID, commentType)
}

func (r *repo) DeleteByUser(dbc dbctx.Context, userID int64, commentType string) (int64, error) {
	return r.deleteWhere(dbc, "user_id = ? AND comment_type = ?", userID, commentType)
}

func (r *repo) deleteWhere(dbc dbctx.Context, query string, args ...interface{}) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var deleted int64
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var ids []int64
		if err := txx.Model(&legacy.Comment{}).Where(query, args...).Pluck("comment_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := txx.Where("comment_id IN ?", ids).Delete(&legacy.CommentMeta{}).Error; err != nil {
			return err
		}
		res := txx.Where("comment_id IN ?", ids).Delete(&legacy.Comment{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *repo) ListAfterID(dbc dbctx.Context, afterID int64, types []string, limit int) ([]*legacy.Comment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*legacy.Comment
	if len(types) == 0 || limit <= 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("comment_id > ? AND comment_type IN ?", afterID, types).
		Order("comment_id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPage pages through comments of the given types in id order.
func (r *repo) ListPage(dbc dbctx.Context, types []string, offset, limit int) ([]*legacy.Comment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*legacy.Comment
	if len(types) == 0 || limit <= 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("comment_type IN ?", types).
		Order("comment_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func setMeta(txx *gorm.DB, commentID int64, values map[string]string) error {
	for key, value := range values {
		res := txx.Model(&legacy.CommentMeta{}).
			Where("comment_id = ? AND meta_key = ?", commentID, key).
			Update("meta_value", value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			continue
		}
		if err := txx.Create(&legacy.CommentMeta{CommentID: commentID, MetaKey: key, MetaValue: value}).Error; err != nil {
			return err
		}
	}
	return nil
}
