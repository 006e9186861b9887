package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	"github.com/yungbote/lms-progress/internal/data/repos/options"
	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/progress/submission"
)

const (
	QuizSubmissionsName = "quiz_submissions"
	QuizCursorOption    = "sensei_migrated_quiz_last_comment_id"
)

// SubmissionRecorder writes one submission with answers and grades.
type SubmissionRecorder interface {
	Record(ctx context.Context, s *submission.Submission) (*submission.Submission, error)
}

type QuizDeps struct {
	Activity    activity.Repo
	Structure   structure.Repo
	Submissions SubmissionRecorder
	Options     options.Store
	BatchSize   int
	Log         *logger.Logger
}

// QuizSubmissions copies the answers, grades and feedback kept in lesson
// status comment meta into the submission tables.
type QuizSubmissions struct {
	*Base
	deps     QuizDeps
	log      *logger.Logger
	tracer   trace.Tracer
	recorded int
}

func NewQuizSubmissions(deps QuizDeps) *QuizSubmissions {
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	return &QuizSubmissions{
		Base:   NewBase(QuizSubmissionsName, migrationTargetSchema, QuizCursorOption, deps.Options),
		deps:   deps,
		log:    deps.Log.With("migration", QuizSubmissionsName),
		tracer: otel.Tracer(migrationTracerName),
	}
}

func (m *QuizSubmissions) Recorded() int { return m.recorded }

// Run returns the number of lesson comments read.
func (m *QuizSubmissions) Run(ctx context.Context, dryRun bool) (int, error) {
	ctx, span := m.tracer.Start(ctx, "migration.quiz_submissions", trace.WithAttributes(attribute.Bool("dry_run", dryRun)))
	defer span.End()

	cursor, err := m.Cursor(ctx)
	if err != nil {
		return 0, err
	}
	dbc := dbctx.With(ctx)
	comments, err := m.deps.Activity.ListAfterID(dbc, cursor, []string{legacy.LessonStatusType}, m.deps.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list lesson comments after %d: %w", cursor, err)
	}
	if len(comments) == 0 {
		return 0, nil
	}

	recorded := 0
	for _, c := range comments {
		sub, err := m.submissionFor(dbc, c)
		if err != nil {
			m.AddError(err.Error())
			continue
		}
		if sub == nil {
			continue
		}
		if dryRun {
			recorded++
			continue
		}
		if _, err := m.deps.Submissions.Record(ctx, sub); err != nil {
			m.AddError(fmt.Sprintf("comment %d: record submission: %v", c.ID, err))
			continue
		}
		recorded++
	}

	span.SetAttributes(attribute.Int("comments", len(comments)), attribute.Int("submissions", recorded))
	if dryRun {
		return len(comments), nil
	}
	m.recorded += recorded
	if err := m.SetCursor(ctx, comments[len(comments)-1].ID); err != nil {
		return 0, err
	}
	return len(comments), nil
}

// submissionFor returns nil when the comment carries no quiz answers.
func (m *QuizSubmissions) submissionFor(dbc dbctx.Context, c *legacy.Comment) (*submission.Submission, error) {
	meta, err := m.deps.Activity.Meta(dbc, c.ID)
	if err != nil {
		return nil, err
	}
	rawAnswers, ok := meta[legacy.MetaQuizAnswers]
	if !ok || strings.TrimSpace(rawAnswers) == "" {
		return nil, nil
	}

	quizID, err := m.deps.Structure.LessonQuizID(dbc, c.CommentPostID)
	if err != nil {
		return nil, err
	}
	if quizID == 0 {
		return nil, fmt.Errorf("comment %d: lesson %d has no quiz", c.ID, c.CommentPostID)
	}

	answers, err := decodeQuestionMap(rawAnswers)
	if err != nil {
		return nil, fmt.Errorf("comment %d: %s: %v", c.ID, legacy.MetaQuizAnswers, err)
	}
	grades := map[int64]json.RawMessage{}
	if raw := meta[legacy.MetaQuizGrades]; strings.TrimSpace(raw) != "" {
		if grades, err = decodeQuestionMap(raw); err != nil {
			return nil, fmt.Errorf("comment %d: %s: %v", c.ID, legacy.MetaQuizGrades, err)
		}
	}
	feedback := map[int64]json.RawMessage{}
	if raw := meta[legacy.MetaAnswersFeedback]; strings.TrimSpace(raw) != "" {
		if feedback, err = decodeQuestionMap(raw); err != nil {
			return nil, fmt.Errorf("comment %d: %s: %v", c.ID, legacy.MetaAnswersFeedback, err)
		}
	}

	sub := &submission.Submission{QuizID: quizID, UserID: c.UserID}
	if raw := strings.TrimSpace(meta[legacy.MetaGrade]); raw != "" {
		g, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("comment %d: %s: invalid number %q", c.ID, legacy.MetaGrade, raw)
		}
		sub.FinalGrade = &g
	}

	ids := make([]int64, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, qid := range ids {
		a := submission.Answer{QuestionID: qid, Value: answerValue(answers[qid])}
		if raw, ok := grades[qid]; ok {
			p, err := number(raw)
			if err != nil {
				return nil, fmt.Errorf("comment %d: grade for question %d: %v", c.ID, qid, err)
			}
			a.Points = &p
		}
		if raw, ok := feedback[qid]; ok {
			if fb := answerValue(raw); fb != "" {
				a.Feedback = &fb
			}
		}
		sub.Answers = append(sub.Answers, a)
	}
	return sub, nil
}

// decodeQuestionMap reads a JSON object keyed by question id.
func decodeQuestionMap(raw string) (map[int64]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("malformed JSON")
	}
	out := make(map[int64]json.RawMessage, len(m))
	for k, v := range m {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid question id %q", k)
		}
		out[id] = v
	}
	return out, nil
}

// answerValue keeps strings as-is and stores anything else as its JSON text.
func answerValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// number accepts 3, 3.5 or "3.5".
func number(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("invalid number %s", string(raw))
}
