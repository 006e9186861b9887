package submission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/domain/tables"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// Answer is one question of a submission with its optional grade.
type Answer struct {
	QuestionID int64
	Value      string
	Points     *float64
	Feedback   *string
}

// Submission is a quiz submission with its answers, ordered by question.
type Submission struct {
	ID         int64
	QuizID     int64
	UserID     int64
	FinalGrade *float64
	Answers    []Answer
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Repository struct {
	db   *gorm.DB
	rows tablesrepo.QuizSubmissionRepo
	loc  *time.Location
	log  *logger.Logger
}

func NewRepository(db *gorm.DB, rows tablesrepo.QuizSubmissionRepo, loc *time.Location, baseLog *logger.Logger) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{
		db:   db,
		rows: rows,
		loc:  loc,
		log:  baseLog.With("repo", "QuizSubmissionRepository"),
	}
}

// Get returns nil when the user has no submission for the quiz.
func (r *Repository) Get(ctx context.Context, quizID, userID int64) (*Submission, error) {
	dbc := dbctx.With(ctx)
	row, err := r.rows.GetSubmission(dbc, quizID, userID)
	if err != nil || row == nil {
		return nil, err
	}
	answers, err := r.rows.GetAnswers(dbc, row.ID)
	if err != nil {
		return nil, err
	}
	grades, err := r.rows.GetGrades(dbc, row.ID)
	if err != nil {
		return nil, err
	}
	byAnswer := make(map[int64]*tables.QuizGrade, len(grades))
	for _, g := range grades {
		byAnswer[g.AnswerID] = g
	}

	out := &Submission{
		ID:         row.ID,
		QuizID:     row.QuizID,
		UserID:     row.UserID,
		FinalGrade: row.FinalGrade,
		CreatedAt:  time.Unix(row.CreatedAt, 0).In(r.loc),
		UpdatedAt:  time.Unix(row.UpdatedAt, 0).In(r.loc),
	}
	for _, a := range answers {
		ans := Answer{QuestionID: a.QuestionID, Value: a.Value}
		if g := byAnswer[a.ID]; g != nil {
			points := g.Points
			ans.Points = &points
			ans.Feedback = g.Feedback
		}
		out.Answers = append(out.Answers, ans)
	}
	return out, nil
}

func (r *Repository) Has(ctx context.Context, quizID, userID int64) (bool, error) {
	row, err := r.rows.GetSubmission(dbctx.With(ctx), quizID, userID)
	return row != nil, err
}

// Record writes a submission with its answers and grades in one transaction.
// An existing submission for (quiz, user) is updated in place.
func (r *Repository) Record(ctx context.Context, s *Submission) (*Submission, error) {
	if s == nil || s.QuizID <= 0 || s.UserID <= 0 {
		return nil, fmt.Errorf("record submission: quiz and user are required")
	}
	now := time.Now().Unix()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := r.rows.GetSubmission(dbc, s.QuizID, s.UserID)
		if err != nil {
			return err
		}
		if row == nil {
			row, err = r.rows.CreateSubmission(dbc, &tables.QuizSubmission{
				QuizID:     s.QuizID,
				UserID:     s.UserID,
				FinalGrade: s.FinalGrade,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if err != nil {
				return err
			}
		} else if err := r.rows.UpdateFinalGrade(dbc, row.ID, s.FinalGrade, now); err != nil {
			return err
		}
		s.ID = row.ID

		if len(s.Answers) == 0 {
			return nil
		}
		sort.Slice(s.Answers, func(i, j int) bool { return s.Answers[i].QuestionID < s.Answers[j].QuestionID })
		answerRows := make([]*tables.QuizAnswer, 0, len(s.Answers))
		for _, a := range s.Answers {
			answerRows = append(answerRows, &tables.QuizAnswer{
				SubmissionID: row.ID,
				QuestionID:   a.QuestionID,
				Value:        a.Value,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if _, err := r.rows.UpsertAnswers(dbc, answerRows); err != nil {
			return err
		}

		// Reload so answer ids are right for rows that already existed.
		stored, err := r.rows.GetAnswers(dbc, row.ID)
		if err != nil {
			return err
		}
		answerIDs := make(map[int64]int64, len(stored))
		for _, a := range stored {
			answerIDs[a.QuestionID] = a.ID
		}
		var gradeRows []*tables.QuizGrade
		for _, a := range s.Answers {
			if a.Points == nil {
				continue
			}
			answerID, ok := answerIDs[a.QuestionID]
			if !ok {
				continue
			}
			gradeRows = append(gradeRows, &tables.QuizGrade{
				AnswerID:   answerID,
				QuestionID: a.QuestionID,
				Points:     *a.Points,
				Feedback:   a.Feedback,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
		_, err = r.rows.UpsertGrades(dbc, gradeRows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, s.QuizID, s.UserID)
}

func (r *Repository) Delete(ctx context.Context, quizID, userID int64) error {
	dbc := dbctx.With(ctx)
	row, err := r.rows.GetSubmission(dbc, quizID, userID)
	if err != nil || row == nil {
		return err
	}
	return r.rows.DeleteSubmission(dbc, row.ID)
}
