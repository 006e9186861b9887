package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/yungbote/lms-progress/internal/pkg/errors"
)

func TestCourseTransitions(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	done := started.Add(time.Hour)

	p := NewTablesCourseProgress(Fields{SubjectID: 7, UserID: 3})
	p.Start(&started)
	if p.Status() != StatusInProgress || !p.StartedAt().Equal(started) || p.CompletedAt() != nil {
		t.Fatalf("unexpected after start: %+v", p.Fields())
	}
	p.Complete(&done)
	if !p.IsComplete() || !p.CompletedAt().Equal(done) || !p.StartedAt().Equal(started) {
		t.Fatalf("unexpected after complete: %+v", p.Fields())
	}

	// Restarting clears completion.
	p.Start(nil)
	if p.IsComplete() || p.CompletedAt() != nil {
		t.Fatalf("restart should reopen: %+v", p.Fields())
	}
	if p.CourseID() != 7 || p.Kind() != KindCourse {
		t.Fatalf("identity lost: %d %s", p.CourseID(), p.Kind())
	}
}

func TestCompleteWithoutStartFillsStartedAt(t *testing.T) {
	done := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	p := NewCommentsLessonProgress(Fields{SubjectID: 9}, nil)
	p.Complete(&done)
	if p.StartedAt() == nil || !p.StartedAt().Equal(done) {
		t.Fatalf("expected started_at = completed_at, got %v", p.StartedAt())
	}
}

func TestCompleteCopiesTimestamp(t *testing.T) {
	at := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	p := NewTablesLessonProgress(Fields{})
	p.Complete(&at)
	at = at.Add(time.Hour)
	if p.CompletedAt().Equal(at) {
		t.Fatalf("record aliases the caller's time")
	}
}

func TestCommentsLessonCountsQuizSuccessAsComplete(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusComplete:   true,
		StatusPassed:     true,
		StatusGraded:     true,
		StatusFailed:     false,
		StatusUngraded:   false,
		StatusInProgress: false,
	} {
		p := NewCommentsLessonProgress(Fields{Status: status}, nil)
		if got := p.IsComplete(); got != want {
			t.Fatalf("%s: want %v got %v", status, want, got)
		}
	}
	// The tables row only counts "complete".
	if NewTablesLessonProgress(Fields{Status: StatusPassed}).IsComplete() {
		t.Fatalf("tables lesson should not treat passed as complete")
	}
}

func TestQuizTransitions(t *testing.T) {
	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	for _, p := range []QuizProgress{
		NewTablesQuizProgress(Fields{SubjectID: 4}),
		NewCommentsQuizProgress(Fields{SubjectID: 4}, 2, nil),
	} {
		p.Start(&at)
		if p.IsQuizSubmitted() || p.IsQuizCompleted() {
			t.Fatalf("%T: in-progress quiz reads as submitted", p)
		}
		p.Ungrade()
		if !p.IsQuizSubmitted() || p.IsQuizCompleted() || p.CompletedAt() != nil {
			t.Fatalf("%T: unexpected ungraded state", p)
		}
		p.Grade(&at)
		if !p.IsQuizCompleted() || p.Status() != StatusGraded {
			t.Fatalf("%T: expected graded", p)
		}
		p.Fail()
		if p.IsQuizCompleted() || !p.IsQuizSubmitted() || p.CompletedAt() != nil {
			t.Fatalf("%T: fail should clear completion", p)
		}
		p.Pass(nil)
		if !p.IsQuizCompleted() || p.CompletedAt() == nil {
			t.Fatalf("%T: expected passed with completed_at", p)
		}
	}
}

func TestCommentViewUsesLessonForQuiz(t *testing.T) {
	updated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewCommentsQuizProgress(Fields{ID: 55, SubjectID: 4, UserID: 8, Status: StatusPassed, UpdatedAt: updated}, 2, nil)
	v := q.Legacy()
	if v.CommentID() != 55 || v.CommentPostID() != 2 || v.UserID() != 8 || v.CommentApproved() != "passed" || !v.CommentDate().Equal(updated) {
		t.Fatalf("unexpected quiz view: %+v", v)
	}
	c := NewCommentsCourseProgress(Fields{SubjectID: 7}, nil).Legacy()
	if c.CommentPostID() != 7 {
		t.Fatalf("course view should use its own post, got %d", c.CommentPostID())
	}
}

func TestLazyMetadataLoadsOnce(t *testing.T) {
	var calls int
	var mu sync.Mutex
	m := NewLazyMetadata(func() (map[string]string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return map[string]string{"start": "2024-01-01 00:00:00", "grade": "80"}, nil
	})
	if m.Loaded() {
		t.Fatalf("loader ran before first read")
	}
	m.Set("grade", "90")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Get("start")
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("loader ran %d times", calls)
	}
	if v, _ := m.Get("grade"); v != "90" {
		t.Fatalf("overlay should win, got %q", v)
	}
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "grade" || keys[1] != "start" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestLazyMetadataError(t *testing.T) {
	boom := errors.New("boom")
	m := NewLazyMetadata(func() (map[string]string, error) { return nil, boom })
	if _, err := m.All(); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if m.Keys() != nil {
		t.Fatalf("keys should be nil on error")
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusGraded.IsTerminalSuccess() || StatusFailed.IsTerminalSuccess() {
		t.Fatalf("terminal success mismatch")
	}
	if StatusComplete.IsQuizSubmitted() || !StatusFailed.IsQuizSubmitted() {
		t.Fatalf("quiz submitted mismatch")
	}
	if !errors.Is(ErrUnsupportedProgress, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("ErrUnsupportedProgress should wrap ErrInvalidArgument")
	}
}
