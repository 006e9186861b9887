package tables

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/lms-progress/internal/domain/tables"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type QuizSubmissionRepo interface {
	CreateSubmission(dbc dbctx.Context, row *tables.QuizSubmission) (*tables.QuizSubmission, error)
	GetSubmission(dbc dbctx.Context, quizID, userID int64) (*tables.QuizSubmission, error)
	UpdateFinalGrade(dbc dbctx.Context, id int64, grade *float64, updatedAt int64) error
	UpsertAnswers(dbc dbctx.Context, rows []*tables.QuizAnswer) ([]*tables.QuizAnswer, error)
	GetAnswers(dbc dbctx.Context, submissionID int64) ([]*tables.QuizAnswer, error)
	UpsertGrades(dbc dbctx.Context, rows []*tables.QuizGrade) ([]*tables.QuizGrade, error)
	GetGrades(dbc dbctx.Context, submissionID int64) ([]*tables.QuizGrade, error)
	DeleteSubmission(dbc dbctx.Context, id int64) error
}

type quizSubmissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) QuizSubmissionRepo {
	return &quizSubmissionRepo{
		db:  db,
		log: baseLog.With("repo", "QuizSubmissionRepo"),
	}
}

func (r *quizSubmissionRepo) CreateSubmission(dbc dbctx.Context, row *tables.QuizSubmission) (*tables.QuizSubmission, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *quizSubmissionRepo) GetSubmission(dbc dbctx.Context, quizID, userID int64) (*tables.QuizSubmission, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row tables.QuizSubmission
	err := transaction.WithContext(dbc.Ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
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

func (r *quizSubmissionRepo) UpdateFinalGrade(dbc dbctx.Context, id int64, grade *float64, updatedAt int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&tables.QuizSubmission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"final_grade": grade,
			"updated_at":  updatedAt,
		}).Error
}

// UpsertAnswers replaces the value of answers already stored for the same question.
func (r *quizSubmissionRepo) UpsertAnswers(dbc dbctx.Context, rows []*tables.QuizAnswer) ([]*tables.QuizAnswer, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*tables.QuizAnswer{}, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *quizSubmissionRepo) GetAnswers(dbc dbctx.Context, submissionID int64) ([]*tables.QuizAnswer, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*tables.QuizAnswer
	err := transaction.WithContext(dbc.Ctx).
		Where("submission_id = ?", submissionID).
		Order("question_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *quizSubmissionRepo) UpsertGrades(dbc dbctx.Context, rows []*tables.QuizGrade) ([]*tables.QuizGrade, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*tables.QuizGrade{}, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "answer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"points", "feedback", "updated_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *quizSubmissionRepo) GetGrades(dbc dbctx.Context, submissionID int64) ([]*tables.QuizGrade, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*tables.QuizGrade
	err := transaction.WithContext(dbc.Ctx).
		Table("sensei_lms_quiz_grades AS g").
		Select("g.*").
		Joins("JOIN sensei_lms_quiz_answers AS a ON a.id = g.answer_id").
		Where("a.submission_id = ?", submissionID).
		Order("g.question_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSubmission removes the submission with its answers and grades.
func (r *quizSubmissionRepo) DeleteSubmission(dbc dbctx.Context, id int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var answerIDs []int64
		if err := txx.Model(&tables.QuizAnswer{}).Where("submission_id = ?", id).Pluck("id", &answerIDs).Error; err != nil {
			return err
		}
		if len(answerIDs) > 0 {
			if err := txx.Where("answer_id IN ?", answerIDs).Delete(&tables.QuizGrade{}).Error; err != nil {
				return err
			}
		}
		if err := txx.Where("submission_id = ?", id).Delete(&tables.QuizAnswer{}).Error; err != nil {
			return err
		}
		return txx.Where("id = ?", id).Delete(&tables.QuizSubmission{}).Error
	})
}
