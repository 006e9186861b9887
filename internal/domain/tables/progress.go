package tables

// Progress is one row of sensei_lms_progress. Timestamps are epoch seconds.
type Progress struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PostID       int64  `gorm:"column:post_id;not null;uniqueIndex:idx_progress_post_user_type,priority:1" json:"post_id"`
	UserID       int64  `gorm:"column:user_id;not null;uniqueIndex:idx_progress_post_user_type,priority:2;index" json:"user_id"`
	ParentPostID *int64 `gorm:"column:parent_post_id;index" json:"parent_post_id,omitempty"`
	Type         string `gorm:"column:type;size:20;not null;uniqueIndex:idx_progress_post_user_type,priority:3" json:"type"`
	Status       string `gorm:"column:status;size:20;not null" json:"status"`
	StartedAt    *int64 `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *int64 `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt    int64  `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt    int64  `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

func (Progress) TableName() string { return "sensei_lms_progress" }
