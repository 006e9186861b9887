package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	"github.com/yungbote/lms-progress/internal/data/repos/options"
	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/progress/submission"
)

type fixture struct {
	db       *gorm.DB
	opts     options.Store
	progress tablesrepo.ProgressRepo
	subs     *submission.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return &fixture{
		db:       db,
		opts:     options.NewGormStore(db, log),
		progress: tablesrepo.NewProgressRepo(db, log),
		subs:     submission.NewRepository(db, tablesrepo.NewQuizSubmissionRepo(db, log), time.UTC, log),
	}
}

func (f *fixture) studentProgress(t *testing.T, batch int) *StudentProgress {
	log := testutil.Logger(t)
	return NewStudentProgress(ProgressDeps{
		Activity:  activity.NewRepo(f.db, log),
		Structure: structure.NewRepo(f.db, log),
		Progress:  f.progress,
		Options:   f.opts,
		BatchSize: batch,
		Loc:       time.UTC,
		Log:       log,
	})
}

func (f *fixture) quizSubmissions(t *testing.T, batch int) *QuizSubmissions {
	log := testutil.Logger(t)
	return NewQuizSubmissions(QuizDeps{
		Activity:    activity.NewRepo(f.db, log),
		Structure:   structure.NewRepo(f.db, log),
		Submissions: f.subs,
		Options:     f.opts,
		BatchSize:   batch,
		Log:         log,
	})
}

func TestStudentProgressMigratesInBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbc := dbctx.With(ctx)

	course := testutil.SeedCourse(t, f.db)
	lesson := testutil.SeedLesson(t, f.db, course.ID)
	quiz := testutil.SeedQuiz(t, f.db, lesson.ID, true)

	started := time.Date(2023, 3, 1, 9, 0, 0, 0, time.UTC)
	done := time.Date(2023, 3, 4, 17, 30, 0, 0, time.UTC)
	testutil.SeedStatusComment(t, f.db, course.ID, 5, legacy.CourseStatusType, "complete", done,
		map[string]string{"start": "2023-03-01 09:00:00"})
	testutil.SeedStatusComment(t, f.db, lesson.ID, 5, legacy.LessonStatusType, "passed", done,
		map[string]string{"start": "2023-03-01 09:00:00"})
	testutil.SeedStatusComment(t, f.db, course.ID, 6, legacy.CourseStatusType, "in-progress", started, nil)

	m := f.studentProgress(t, 2)
	n, err := m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, m.Errors())
	assert.Equal(t, 4, m.Inserted())

	courseRow, err := f.progress.Find(dbc, course.ID, 5, "course")
	require.NoError(t, err)
	require.NotNil(t, courseRow)
	assert.Equal(t, "complete", courseRow.Status)
	require.NotNil(t, courseRow.StartedAt)
	assert.Equal(t, started.Unix(), *courseRow.StartedAt)
	require.NotNil(t, courseRow.CompletedAt)
	assert.Equal(t, done.Unix(), *courseRow.CompletedAt)
	assert.Nil(t, courseRow.ParentPostID)

	lessonRow, err := f.progress.Find(dbc, lesson.ID, 5, "lesson")
	require.NoError(t, err)
	require.NotNil(t, lessonRow)
	assert.Equal(t, "complete", lessonRow.Status)
	require.NotNil(t, lessonRow.ParentPostID)
	assert.Equal(t, course.ID, *lessonRow.ParentPostID)

	quizRow, err := f.progress.Find(dbc, quiz.ID, 5, "quiz")
	require.NoError(t, err)
	require.NotNil(t, quizRow)
	assert.Equal(t, "passed", quizRow.Status)
	require.NotNil(t, quizRow.ParentPostID)
	assert.Equal(t, lesson.ID, *quizRow.ParentPostID)

	pending, err := f.progress.Find(dbc, course.ID, 6, "course")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "in-progress", pending.Status)
	assert.Nil(t, pending.CompletedAt, "no start meta falls back to the comment date")
	require.NotNil(t, pending.StartedAt)
	assert.Equal(t, started.Unix(), *pending.StartedAt)
}

func TestStudentProgressSkipsQuizWithoutQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, f.db)
	lesson := testutil.SeedLesson(t, f.db, course.ID)
	quiz := testutil.SeedQuiz(t, f.db, lesson.ID, false)
	testutil.SeedStatusComment(t, f.db, lesson.ID, 5, legacy.LessonStatusType, "ungraded", time.Now().UTC(), nil)

	m := f.studentProgress(t, 10)
	_, err := m.Run(ctx, false)
	require.NoError(t, err)

	lessonRow, err := f.progress.Find(dbctx.With(ctx), lesson.ID, 5, "lesson")
	require.NoError(t, err)
	require.NotNil(t, lessonRow)
	assert.Equal(t, "in-progress", lessonRow.Status)

	quizRow, err := f.progress.Find(dbctx.With(ctx), quiz.ID, 5, "quiz")
	require.NoError(t, err)
	assert.Nil(t, quizRow)
}

func TestStudentProgressRecordsBadStartDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, f.db)
	bad := testutil.SeedStatusComment(t, f.db, course.ID, 7, legacy.CourseStatusType, "in-progress", time.Now().UTC(),
		map[string]string{"start": "yesterday-ish"})
	testutil.SeedStatusComment(t, f.db, course.ID, 8, legacy.CourseStatusType, "in-progress", time.Now().UTC(), nil)

	m := f.studentProgress(t, 10)
	n, err := m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, m.Errors(), 1)
	assert.Contains(t, m.Errors()[0], "invalid start date")

	row, err := f.progress.Find(dbctx.With(ctx), course.ID, 7, "course")
	require.NoError(t, err)
	assert.Nil(t, row)
	row, err = f.progress.Find(dbctx.With(ctx), course.ID, 8, "course")
	require.NoError(t, err)
	assert.NotNil(t, row)

	cursor, err := m.Cursor(ctx)
	require.NoError(t, err)
	assert.Greater(t, cursor, bad.ID)
}

func TestStudentProgressDryRunAndRerun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, f.db)
	testutil.SeedStatusComment(t, f.db, course.ID, 5, legacy.CourseStatusType, "complete", time.Now().UTC(), nil)

	m := f.studentProgress(t, 10)
	n, err := m.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := f.progress.CountByType(dbctx.With(ctx), "course")
	require.NoError(t, err)
	assert.Zero(t, count)
	cursor, err := m.Cursor(ctx)
	require.NoError(t, err)
	assert.Zero(t, cursor)

	n, err = m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A cleared cursor re-reads everything without duplicating rows.
	require.NoError(t, m.ClearState(ctx))
	again := f.studentProgress(t, 10)
	n, err = again.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, again.Inserted())
	count, err = f.progress.CountByType(dbctx.With(ctx), "course")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestQuizSubmissionsRecordsAnswersAndGrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, f.db)
	lesson := testutil.SeedLesson(t, f.db, course.ID)
	quiz := testutil.SeedQuiz(t, f.db, lesson.ID, true)
	testutil.SeedStatusComment(t, f.db, lesson.ID, 5, legacy.LessonStatusType, "graded", time.Now().UTC(), map[string]string{
		legacy.MetaQuizAnswers:     `{"11":"a","12":["x","y"]}`,
		legacy.MetaQuizGrades:      `{"11":2,"12":"1.5"}`,
		legacy.MetaAnswersFeedback: `{"11":"good"}`,
		legacy.MetaGrade:           "75",
	})
	// No answers: nothing to record.
	testutil.SeedStatusComment(t, f.db, lesson.ID, 6, legacy.LessonStatusType, "in-progress", time.Now().UTC(), nil)

	m := f.quizSubmissions(t, 10)
	n, err := m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Recorded())
	assert.Empty(t, m.Errors())

	sub, err := f.subs.Get(ctx, quiz.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.NotNil(t, sub.FinalGrade)
	assert.Equal(t, 75.0, *sub.FinalGrade)
	require.Len(t, sub.Answers, 2)
	assert.Equal(t, int64(11), sub.Answers[0].QuestionID)
	assert.Equal(t, "a", sub.Answers[0].Value)
	require.NotNil(t, sub.Answers[0].Points)
	assert.Equal(t, 2.0, *sub.Answers[0].Points)
	require.NotNil(t, sub.Answers[0].Feedback)
	assert.Equal(t, "good", *sub.Answers[0].Feedback)
	assert.Equal(t, `["x","y"]`, sub.Answers[1].Value)
	require.NotNil(t, sub.Answers[1].Points)
	assert.Equal(t, 1.5, *sub.Answers[1].Points)

	none, err := f.subs.Get(ctx, quiz.ID, 6)
	require.NoError(t, err)
	assert.Nil(t, none)

	n, err = m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQuizSubmissionsCollectsRowErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, f.db)
	withQuiz := testutil.SeedLesson(t, f.db, course.ID)
	testutil.SeedQuiz(t, f.db, withQuiz.ID, true)
	noQuiz := testutil.SeedLesson(t, f.db, course.ID)

	testutil.SeedStatusComment(t, f.db, withQuiz.ID, 5, legacy.LessonStatusType, "ungraded", time.Now().UTC(),
		map[string]string{legacy.MetaQuizAnswers: `{"11":`})
	testutil.SeedStatusComment(t, f.db, noQuiz.ID, 5, legacy.LessonStatusType, "ungraded", time.Now().UTC(),
		map[string]string{legacy.MetaQuizAnswers: `{"11":"a"}`})

	m := f.quizSubmissions(t, 10)
	n, err := m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, m.Recorded())
	require.Len(t, m.Errors(), 2)
	assert.Contains(t, m.Errors()[0], "malformed JSON")
	assert.Contains(t, m.Errors()[1], "has no quiz")
}
