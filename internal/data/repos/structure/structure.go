package structure

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// Repo answers course structure questions. Every lookup returns 0/false when
// the relation does not exist.
type Repo interface {
	LessonCourseID(dbc dbctx.Context, lessonID int64) (int64, error)
	QuizLessonID(dbc dbctx.Context, quizID int64) (int64, error)
	LessonQuizID(dbc dbctx.Context, lessonID int64) (int64, error)
	LessonHasQuizQuestions(dbc dbctx.Context, lessonID int64) (bool, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{
		db:  db,
		log: baseLog.With("repo", "StructureRepo"),
	}
}

func (r *repo) LessonCourseID(dbc dbctx.Context, lessonID int64) (int64, error) {
	v, err := r.postMeta(dbc, lessonID, legacy.MetaLessonCourse)
	if err != nil || v == "" {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		r.log.Warn("Malformed lesson course meta", "lesson_id", lessonID, "value", v)
		return 0, nil
	}
	return id, nil
}

func (r *repo) QuizLessonID(dbc dbctx.Context, quizID int64) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var p legacy.Post
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND post_type = ?", quizID, legacy.PostTypeQuiz).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return 0, err
	}
	return p.PostParent, nil
}

func (r *repo) LessonQuizID(dbc dbctx.Context, lessonID int64) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var p legacy.Post
	err := transaction.WithContext(dbc.Ctx).
		Where("post_parent = ? AND post_type = ?", lessonID, legacy.PostTypeQuiz).
		Order("id ASC").
		Limit(1).
		Find(&p).Error
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (r *repo) LessonHasQuizQuestions(dbc dbctx.Context, lessonID int64) (bool, error) {
	v, err := r.postMeta(dbc, lessonID, legacy.MetaQuizHasQuestions)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(v) == "1", nil
}

func (r *repo) postMeta(dbc dbctx.Context, postID int64, key string) (string, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var m legacy.PostMeta
	err := transaction.WithContext(dbc.Ctx).
		Where("post_id = ? AND meta_key = ?", postID, key).
		Order("meta_id DESC").
		Limit(1).
		Find(&m).Error
	if err != nil {
		return "", err
	}
	return m.MetaValue, nil
}
