package testutil

import (
	"strconv"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/domain/legacy"
)

func SeedCourse(tb testing.TB, db *gorm.DB) *legacy.Post {
	tb.Helper()
	return seedPost(tb, db, legacy.PostTypeCourse, 0, "course")
}

// SeedLesson creates a lesson linked to courseID through _lesson_course.
func SeedLesson(tb testing.TB, db *gorm.DB, courseID int64) *legacy.Post {
	tb.Helper()
	p := seedPost(tb, db, legacy.PostTypeLesson, 0, "lesson")
	if courseID != 0 {
		SeedPostMeta(tb, db, p.ID, legacy.MetaLessonCourse, itoa(courseID))
	}
	return p
}

// SeedQuiz creates a quiz whose parent is lessonID.
func SeedQuiz(tb testing.TB, db *gorm.DB, lessonID int64, hasQuestions bool) *legacy.Post {
	tb.Helper()
	p := seedPost(tb, db, legacy.PostTypeQuiz, lessonID, "quiz")
	if hasQuestions {
		SeedPostMeta(tb, db, lessonID, legacy.MetaQuizHasQuestions, "1")
	}
	return p
}

func SeedPostMeta(tb testing.TB, db *gorm.DB, postID int64, key, value string) {
	tb.Helper()
	m := &legacy.PostMeta{PostID: postID, MetaKey: key, MetaValue: value}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("seed postmeta: %v", err)
	}
}

// SeedStatusComment writes a legacy status comment with its meta.
func SeedStatusComment(tb testing.TB, db *gorm.DB, postID, userID int64, commentType, status string, date time.Time, meta map[string]string) *legacy.Comment {
	tb.Helper()
	c := &legacy.Comment{
		CommentPostID:   postID,
		UserID:          userID,
		CommentType:     commentType,
		CommentApproved: status,
		CommentDate:     date,
		CommentDateGMT:  date.UTC(),
	}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed comment: %v", err)
	}
	for k, v := range meta {
		m := &legacy.CommentMeta{CommentID: c.ID, MetaKey: k, MetaValue: v}
		if err := db.Create(m).Error; err != nil {
			tb.Fatalf("seed commentmeta: %v", err)
		}
	}
	return c
}

func seedPost(tb testing.TB, db *gorm.DB, postType string, parent int64, title string) *legacy.Post {
	tb.Helper()
	p := &legacy.Post{PostType: postType, PostParent: parent, PostStatus: "publish", PostTitle: title}
	if err := db.Create(p).Error; err != nil {
		tb.Fatalf("seed %s: %v", postType, err)
	}
	return p
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
