package migration

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	"github.com/yungbote/lms-progress/internal/data/repos/options"
	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/domain/tables"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/progress/store"
)

const (
	StudentProgressName   = "student_progress"
	ProgressCursorOption  = "sensei_migrated_progress_last_comment_id"
	defaultBatchSize      = 1000
	migrationTracerName   = "lms-progress/migration"
	migrationTargetSchema = "4.16.0"
)

type ProgressDeps struct {
	Activity  activity.Repo
	Structure structure.Repo
	Progress  tablesrepo.ProgressRepo
	Options   options.Store
	BatchSize int
	Loc       *time.Location
	Log       *logger.Logger
}

// StudentProgress copies course and lesson status comments, and the quiz state
// held on lesson comments, into sensei_lms_progress.
type StudentProgress struct {
	*Base
	deps     ProgressDeps
	log      *logger.Logger
	tracer   trace.Tracer
	inserted int
}

func NewStudentProgress(deps ProgressDeps) *StudentProgress {
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	if deps.Loc == nil {
		deps.Loc = time.UTC
	}
	return &StudentProgress{
		Base:   NewBase(StudentProgressName, migrationTargetSchema, ProgressCursorOption, deps.Options),
		deps:   deps,
		log:    deps.Log.With("migration", StudentProgressName),
		tracer: otel.Tracer(migrationTracerName),
	}
}

// Inserted counts rows written by this instance across runs.
func (m *StudentProgress) Inserted() int { return m.inserted }

// Run returns the number of comments read, so a batch of already migrated
// comments still counts as progress.
func (m *StudentProgress) Run(ctx context.Context, dryRun bool) (int, error) {
	ctx, span := m.tracer.Start(ctx, "migration.student_progress", trace.WithAttributes(attribute.Bool("dry_run", dryRun)))
	defer span.End()

	cursor, err := m.Cursor(ctx)
	if err != nil {
		return 0, err
	}
	dbc := dbctx.With(ctx)
	comments, err := m.deps.Activity.ListAfterID(dbc, cursor, []string{legacy.CourseStatusType, legacy.LessonStatusType}, m.deps.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list status comments after %d: %w", cursor, err)
	}
	if len(comments) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, c := range comments {
		rows, err := m.rowsFor(dbc, c)
		if err != nil {
			m.AddError(err.Error())
			continue
		}
		if dryRun {
			inserted += len(rows)
			continue
		}
		for _, row := range rows {
			ok, err := m.deps.Progress.CreateIfAbsent(dbc, row)
			if err != nil {
				m.AddError(fmt.Sprintf("comment %d: insert %s progress: %v", c.ID, row.Type, err))
				continue
			}
			if ok {
				inserted++
			}
		}
	}

	span.SetAttributes(attribute.Int("comments", len(comments)), attribute.Int("rows", inserted))
	if dryRun {
		return len(comments), nil
	}
	m.inserted += inserted
	if err := m.SetCursor(ctx, comments[len(comments)-1].ID); err != nil {
		return 0, err
	}
	m.log.Debug("Batch migrated", "comments", len(comments), "rows", inserted)
	return len(comments), nil
}

func (m *StudentProgress) rowsFor(dbc dbctx.Context, c *legacy.Comment) ([]*tables.Progress, error) {
	loc := m.deps.Loc
	date := c.CommentDate.In(loc)
	started := date
	start, ok, err := m.deps.Activity.MetaValue(dbc, c.ID, store.MetaStart)
	if err != nil {
		return nil, err
	}
	if ok && start != "" {
		started, err = store.ParseLegacyDate(start, loc)
		if err != nil {
			return nil, fmt.Errorf("comment %d: invalid start date %q", c.ID, start)
		}
	}
	status := progress.Status(c.CommentApproved)

	base := func(postID int64, kind progress.Kind, st progress.Status, parent *int64) *tables.Progress {
		row := &tables.Progress{
			PostID:       postID,
			UserID:       c.UserID,
			ParentPostID: parent,
			Type:         string(kind),
			Status:       string(st),
			StartedAt:    store.ToEpoch(&started),
			CreatedAt:    started.Unix(),
			UpdatedAt:    date.Unix(),
		}
		if st.IsTerminalSuccess() {
			row.CompletedAt = store.ToEpoch(&date)
		}
		return row
	}

	switch c.CommentType {
	case legacy.CourseStatusType:
		st := progress.StatusInProgress
		if status == progress.StatusComplete {
			st = progress.StatusComplete
		}
		return []*tables.Progress{base(c.CommentPostID, progress.KindCourse, st, nil)}, nil

	case legacy.LessonStatusType:
		lessonID := c.CommentPostID
		var parent *int64
		courseID, err := m.deps.Structure.LessonCourseID(dbc, lessonID)
		if err != nil {
			return nil, err
		}
		if courseID > 0 {
			parent = &courseID
		}
		st := progress.StatusInProgress
		if status.IsTerminalSuccess() {
			st = progress.StatusComplete
		}
		rows := []*tables.Progress{base(lessonID, progress.KindLesson, st, parent)}

		quizRow, err := m.quizRow(dbc, lessonID, status, base)
		if err != nil {
			return nil, err
		}
		if quizRow != nil {
			rows = append(rows, quizRow)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("comment %d: unexpected type %q", c.ID, c.CommentType)
}

func (m *StudentProgress) quizRow(dbc dbctx.Context, lessonID int64, status progress.Status, base func(int64, progress.Kind, progress.Status, *int64) *tables.Progress) (*tables.Progress, error) {
	if status != progress.StatusInProgress && !status.IsQuizSubmitted() {
		return nil, nil
	}
	hasQuestions, err := m.deps.Structure.LessonHasQuizQuestions(dbc, lessonID)
	if err != nil || !hasQuestions {
		return nil, err
	}
	quizID, err := m.deps.Structure.LessonQuizID(dbc, lessonID)
	if err != nil || quizID == 0 {
		return nil, err
	}
	parent := lessonID
	return base(quizID, progress.KindQuiz, status, &parent), nil
}
