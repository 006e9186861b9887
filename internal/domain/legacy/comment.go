package legacy

import "time"

// Comment types used for progress.
const (
	CourseStatusType = "sensei_course_status"
	LessonStatusType = "sensei_lesson_status"
)

// Quiz submission data kept on the lesson status comment. Maps are JSON
// objects keyed by question id.
const (
	MetaQuizAnswers     = "quiz_answers"
	MetaQuizGrades      = "quiz_grades"
	MetaAnswersFeedback = "answers_feedback"
	MetaGrade           = "grade"
)

// QuizMetaKeys lists every quiz key stored on a lesson status comment.
var QuizMetaKeys = []string{MetaQuizAnswers, MetaQuizGrades, MetaAnswersFeedback, MetaGrade}

type Comment struct {
	ID              int64     `gorm:"column:comment_id;primaryKey;autoIncrement" json:"comment_id"`
	CommentPostID   int64     `gorm:"column:comment_post_id;not null;index:idx_comments_post_user_type,priority:1" json:"comment_post_id"`
	UserID          int64     `gorm:"column:user_id;not null;index:idx_comments_post_user_type,priority:2;index" json:"user_id"`
	CommentType     string    `gorm:"column:comment_type;not null;index:idx_comments_post_user_type,priority:3" json:"comment_type"`
	CommentApproved string    `gorm:"column:comment_approved;not null" json:"comment_approved"`
	CommentAuthor   string    `gorm:"column:comment_author" json:"comment_author"`
	CommentContent  string    `gorm:"column:comment_content" json:"comment_content"`
	CommentDate     time.Time `gorm:"column:comment_date;not null" json:"comment_date"`
	CommentDateGMT  time.Time `gorm:"column:comment_date_gmt;not null" json:"comment_date_gmt"`
}

func (Comment) TableName() string { return "comments" }

type CommentMeta struct {
	ID        int64  `gorm:"column:meta_id;primaryKey;autoIncrement" json:"meta_id"`
	CommentID int64  `gorm:"column:comment_id;not null;index:idx_commentmeta_comment_key,priority:1" json:"comment_id"`
	MetaKey   string `gorm:"column:meta_key;not null;index:idx_commentmeta_comment_key,priority:2" json:"meta_key"`
	MetaValue string `gorm:"column:meta_value" json:"meta_value"`
}

func (CommentMeta) TableName() string { return "commentmeta" }
