package tables

type QuizSubmission struct {
	ID         int64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	QuizID     int64    `gorm:"column:quiz_id;not null;uniqueIndex:idx_quiz_submission_quiz_user,priority:1" json:"quiz_id"`
	UserID     int64    `gorm:"column:user_id;not null;uniqueIndex:idx_quiz_submission_quiz_user,priority:2;index" json:"user_id"`
	FinalGrade *float64 `gorm:"column:final_grade" json:"final_grade,omitempty"`
	CreatedAt  int64    `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt  int64    `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

func (QuizSubmission) TableName() string { return "sensei_lms_quiz_submissions" }

type QuizAnswer struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SubmissionID int64  `gorm:"column:submission_id;not null;uniqueIndex:idx_quiz_answer_submission_question,priority:1" json:"submission_id"`
	QuestionID   int64  `gorm:"column:question_id;not null;uniqueIndex:idx_quiz_answer_submission_question,priority:2" json:"question_id"`
	Value        string `gorm:"column:value;type:text;not null" json:"value"`
	CreatedAt    int64  `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt    int64  `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

func (QuizAnswer) TableName() string { return "sensei_lms_quiz_answers" }

type QuizGrade struct {
	ID         int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AnswerID   int64   `gorm:"column:answer_id;not null;uniqueIndex:idx_quiz_grade_answer" json:"answer_id"`
	QuestionID int64   `gorm:"column:question_id;not null;index" json:"question_id"`
	Points     float64 `gorm:"column:points;not null" json:"points"`
	Feedback   *string `gorm:"column:feedback;type:text" json:"feedback,omitempty"`
	CreatedAt  int64   `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt  int64   `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

func (QuizGrade) TableName() string { return "sensei_lms_quiz_grades" }

// All lists the models owned by the progress schema, in creation order.
func All() []any {
	return []any{&Progress{}, &QuizSubmission{}, &QuizAnswer{}, &QuizGrade{}}
}
