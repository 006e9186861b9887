package progress

import "time"

// CommentsCourseProgress is course progress read from the legacy activity store.
type CommentsCourseProgress struct {
	record
	meta *Metadata
}

func NewCommentsCourseProgress(f Fields, meta *Metadata) *CommentsCourseProgress {
	if meta == nil {
		meta = NewMetadata(nil)
	}
	return &CommentsCourseProgress{record: record{f: f}, meta: meta}
}

func (p *CommentsCourseProgress) Kind() Kind             { return KindCourse }
func (p *CommentsCourseProgress) CourseID() int64        { return p.f.SubjectID }
func (p *CommentsCourseProgress) Start(at *time.Time)    { p.start(at) }
func (p *CommentsCourseProgress) Complete(at *time.Time) { p.finish(StatusComplete, at) }
func (p *CommentsCourseProgress) IsComplete() bool       { return p.f.Status == StatusComplete }
func (p *CommentsCourseProgress) Metadata() *Metadata    { return p.meta }
func (p *CommentsCourseProgress) Legacy() CommentView    { return CommentView{p: p} }

// TablesCourseProgress is course progress stored in the progress table.
type TablesCourseProgress struct {
	record
}

func NewTablesCourseProgress(f Fields) *TablesCourseProgress {
	return &TablesCourseProgress{record: record{f: f}}
}

func (p *TablesCourseProgress) Kind() Kind             { return KindCourse }
func (p *TablesCourseProgress) CourseID() int64        { return p.f.SubjectID }
func (p *TablesCourseProgress) Start(at *time.Time)    { p.start(at) }
func (p *TablesCourseProgress) Complete(at *time.Time) { p.finish(StatusComplete, at) }
func (p *TablesCourseProgress) IsComplete() bool       { return p.f.Status == StatusComplete }

// CommentsLessonProgress is lesson progress read from the legacy activity store.
// Its status may also hold one of the quiz states.
type CommentsLessonProgress struct {
	record
	meta *Metadata
}

func NewCommentsLessonProgress(f Fields, meta *Metadata) *CommentsLessonProgress {
	if meta == nil {
		meta = NewMetadata(nil)
	}
	return &CommentsLessonProgress{record: record{f: f}, meta: meta}
}

func (p *CommentsLessonProgress) Kind() Kind             { return KindLesson }
func (p *CommentsLessonProgress) LessonID() int64        { return p.f.SubjectID }
func (p *CommentsLessonProgress) Start(at *time.Time)    { p.start(at) }
func (p *CommentsLessonProgress) Complete(at *time.Time) { p.finish(StatusComplete, at) }
func (p *CommentsLessonProgress) IsComplete() bool       { return p.f.Status.IsTerminalSuccess() }
func (p *CommentsLessonProgress) Metadata() *Metadata    { return p.meta }
func (p *CommentsLessonProgress) Legacy() CommentView    { return CommentView{p: p} }

type TablesLessonProgress struct {
	record
}

func NewTablesLessonProgress(f Fields) *TablesLessonProgress {
	return &TablesLessonProgress{record: record{f: f}}
}

func (p *TablesLessonProgress) Kind() Kind             { return KindLesson }
func (p *TablesLessonProgress) LessonID() int64        { return p.f.SubjectID }
func (p *TablesLessonProgress) ParentID() *int64       { return p.f.ParentID }
func (p *TablesLessonProgress) Start(at *time.Time)    { p.start(at) }
func (p *TablesLessonProgress) Complete(at *time.Time) { p.finish(StatusComplete, at) }
func (p *TablesLessonProgress) IsComplete() bool       { return p.f.Status == StatusComplete }

// CommentsQuizProgress lives on the lesson status comment of the quiz's lesson.
// Status() is the quiz view of that comment; the lesson's own status is kept
// so a save without a quiz transition writes it back unchanged.
type CommentsQuizProgress struct {
	record
	lessonID int64
	meta     *Metadata

	lesson  Fields
	touched bool
}

func NewCommentsQuizProgress(f Fields, lessonID int64, meta *Metadata) *CommentsQuizProgress {
	if meta == nil {
		meta = NewMetadata(nil)
	}
	return &CommentsQuizProgress{record: record{f: f}, lessonID: lessonID, meta: meta, lesson: f}
}

// WithLessonState records the lesson comment's stored status and completion
// time when they differ from the quiz view.
func (p *CommentsQuizProgress) WithLessonState(status Status, completedAt *time.Time) *CommentsQuizProgress {
	p.lesson.Status = status
	p.lesson.CompletedAt = completedAt
	return p
}

// LessonFields is what a save persists on the lesson comment: the quiz state
// after a transition, otherwise the lesson state as read.
func (p *CommentsQuizProgress) LessonFields() Fields {
	if p.touched {
		return p.f
	}
	f := p.f
	f.Status = p.lesson.Status
	f.CompletedAt = p.lesson.CompletedAt
	return f
}

func (p *CommentsQuizProgress) Kind() Kind          { return KindQuiz }
func (p *CommentsQuizProgress) QuizID() int64       { return p.f.SubjectID }
func (p *CommentsQuizProgress) LessonID() int64     { return p.lessonID }
func (p *CommentsQuizProgress) Metadata() *Metadata { return p.meta }
func (p *CommentsQuizProgress) Legacy() CommentView { return CommentView{p: p, postID: p.lessonID} }

func (p *CommentsQuizProgress) Start(at *time.Time) {
	p.touched = true
	p.start(at)
}

func (p *CommentsQuizProgress) Pass(at *time.Time) {
	p.touched = true
	p.finish(StatusPassed, at)
}

func (p *CommentsQuizProgress) Grade(at *time.Time) {
	p.touched = true
	p.finish(StatusGraded, at)
}

func (p *CommentsQuizProgress) Fail() {
	p.touched = true
	p.reopen(StatusFailed)
}

func (p *CommentsQuizProgress) Ungrade() {
	p.touched = true
	p.reopen(StatusUngraded)
}

// Transitioned reports whether a quiz transition ran since load.
func (p *CommentsQuizProgress) Transitioned() bool { return p.touched }

func (p *CommentsQuizProgress) IsQuizSubmitted() bool { return p.f.Status.IsQuizSubmitted() }
func (p *CommentsQuizProgress) IsQuizCompleted() bool {
	return p.f.Status == StatusPassed || p.f.Status == StatusGraded
}

type TablesQuizProgress struct {
	record
}

func NewTablesQuizProgress(f Fields) *TablesQuizProgress {
	return &TablesQuizProgress{record: record{f: f}}
}

func (p *TablesQuizProgress) Kind() Kind            { return KindQuiz }
func (p *TablesQuizProgress) QuizID() int64         { return p.f.SubjectID }
func (p *TablesQuizProgress) ParentID() *int64      { return p.f.ParentID }
func (p *TablesQuizProgress) Start(at *time.Time)   { p.start(at) }
func (p *TablesQuizProgress) Pass(at *time.Time)    { p.finish(StatusPassed, at) }
func (p *TablesQuizProgress) Grade(at *time.Time)   { p.finish(StatusGraded, at) }
func (p *TablesQuizProgress) Fail()                 { p.reopen(StatusFailed) }
func (p *TablesQuizProgress) Ungrade()              { p.reopen(StatusUngraded) }
func (p *TablesQuizProgress) IsQuizSubmitted() bool { return p.f.Status.IsQuizSubmitted() }
func (p *TablesQuizProgress) IsQuizCompleted() bool {
	return p.f.Status == StatusPassed || p.f.Status == StatusGraded
}
