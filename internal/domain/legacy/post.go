package legacy

const (
	PostTypeCourse   = "course"
	PostTypeLesson   = "lesson"
	PostTypeQuiz     = "quiz"
	PostTypeQuestion = "question"

	// MetaLessonCourse links a lesson to its course.
	MetaLessonCourse = "_lesson_course"
	// MetaQuizHasQuestions is "1" on a lesson whose quiz has questions.
	MetaQuizHasQuestions = "_quiz_has_questions"
)

type Post struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PostType   string `gorm:"column:post_type;not null;index" json:"post_type"`
	PostParent int64  `gorm:"column:post_parent;not null;default:0;index" json:"post_parent"`
	PostStatus string `gorm:"column:post_status;not null;default:publish" json:"post_status"`
	PostTitle  string `gorm:"column:post_title" json:"post_title"`
}

func (Post) TableName() string { return "posts" }

type PostMeta struct {
	ID        int64  `gorm:"column:meta_id;primaryKey;autoIncrement" json:"meta_id"`
	PostID    int64  `gorm:"column:post_id;not null;index:idx_postmeta_post_key,priority:1" json:"post_id"`
	MetaKey   string `gorm:"column:meta_key;not null;index:idx_postmeta_post_key,priority:2" json:"meta_key"`
	MetaValue string `gorm:"column:meta_value" json:"meta_value"`
}

func (PostMeta) TableName() string { return "postmeta" }
