package progress

import (
	"fmt"
	"time"

	pkgerrors "github.com/yungbote/lms-progress/internal/pkg/errors"
)

type Kind string

const (
	KindCourse Kind = "course"
	KindLesson Kind = "lesson"
	KindQuiz   Kind = "quiz"
)

type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
	StatusPassed     Status = "passed"
	StatusGraded     Status = "graded"
	StatusUngraded   Status = "ungraded"
	StatusFailed     Status = "failed"
)

// IsTerminalSuccess reports whether a completed_at timestamp is meaningful for s.
func (s Status) IsTerminalSuccess() bool {
	switch s {
	case StatusComplete, StatusPassed, StatusGraded:
		return true
	default:
		return false
	}
}

// IsQuizSubmitted is true for any status a submitted quiz can be in.
func (s Status) IsQuizSubmitted() bool {
	switch s {
	case StatusUngraded, StatusGraded, StatusPassed, StatusFailed:
		return true
	default:
		return false
	}
}

// ErrUnsupportedProgress is returned when a repository receives a progress
// record backed by a different storage technology.
var ErrUnsupportedProgress = fmt.Errorf("unsupported progress type: %w", pkgerrors.ErrInvalidArgument)

// Progress is the kind-independent view of a progress record.
type Progress interface {
	ID() int64
	SubjectID() int64
	UserID() int64
	Kind() Kind
	Status() Status
	StartedAt() *time.Time
	CompletedAt() *time.Time
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

type CourseProgress interface {
	Progress
	CourseID() int64
	Start(at *time.Time)
	Complete(at *time.Time)
	IsComplete() bool
}

type LessonProgress interface {
	Progress
	LessonID() int64
	Start(at *time.Time)
	Complete(at *time.Time)
	IsComplete() bool
}

type QuizProgress interface {
	Progress
	QuizID() int64
	Start(at *time.Time)
	Pass(at *time.Time)
	Grade(at *time.Time)
	Fail()
	Ungrade()
	IsQuizSubmitted() bool
	IsQuizCompleted() bool
}

// Fields carries the stored values of a record. ID is only meaningful inside the
// store that produced it.
type Fields struct {
	ID          int64
	SubjectID   int64
	UserID      int64
	ParentID    *int64
	Status      Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type record struct {
	f Fields
}

func (r *record) ID() int64               { return r.f.ID }
func (r *record) SubjectID() int64        { return r.f.SubjectID }
func (r *record) UserID() int64           { return r.f.UserID }
func (r *record) Status() Status          { return r.f.Status }
func (r *record) StartedAt() *time.Time   { return r.f.StartedAt }
func (r *record) CompletedAt() *time.Time { return r.f.CompletedAt }
func (r *record) CreatedAt() time.Time    { return r.f.CreatedAt }
func (r *record) UpdatedAt() time.Time    { return r.f.UpdatedAt }

// Fields returns a copy of the current values.
func (r *record) Fields() Fields { return r.f }

func (r *record) start(at *time.Time) {
	r.f.Status = StatusInProgress
	r.f.StartedAt = orNow(at)
	r.f.CompletedAt = nil
}

func (r *record) finish(status Status, at *time.Time) {
	r.f.Status = status
	if r.f.StartedAt == nil {
		r.f.StartedAt = orNow(at)
	}
	r.f.CompletedAt = orNow(at)
}

func (r *record) reopen(status Status) {
	r.f.Status = status
	r.f.CompletedAt = nil
}

func orNow(at *time.Time) *time.Time {
	if at != nil {
		t := *at
		return &t
	}
	now := time.Now()
	return &now
}
