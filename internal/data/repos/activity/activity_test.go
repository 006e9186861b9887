package activity

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
)

func TestActivityRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRepo(db, testutil.Logger(t))

	course := testutil.SeedCourse(t, tx)

	if n, err := repo.Count(dbc, course.ID, 7, legacy.CourseStatusType); err != nil || n != 0 {
		t.Fatalf("Count before: n=%d err=%v", n, err)
	}
	if c, err := repo.Find(dbc, course.ID, 7, legacy.CourseStatusType); err != nil || c != nil {
		t.Fatalf("Find before: c=%v err=%v", c, err)
	}

	id, err := repo.UpdateStatus(dbc, Status{
		PostID:   course.ID,
		UserID:   7,
		Type:     legacy.CourseStatusType,
		Status:   "in-progress",
		Metadata: map[string]string{"start": "2024-01-02 03:04:05", "percent": "0"},
	})
	if err != nil {
		t.Fatalf("UpdateStatus create: %v", err)
	}

	again, err := repo.UpdateStatus(dbc, Status{
		PostID:   course.ID,
		UserID:   7,
		Type:     legacy.CourseStatusType,
		Status:   "complete",
		Metadata: map[string]string{"percent": "100"},
	})
	if err != nil {
		t.Fatalf("UpdateStatus update: %v", err)
	}
	if again != id {
		t.Fatalf("UpdateStatus: expected same comment %d, got %d", id, again)
	}
	if n, err := repo.Count(dbc, course.ID, 7, legacy.CourseStatusType); err != nil || n != 1 {
		t.Fatalf("Count after: n=%d err=%v", n, err)
	}

	c, err := repo.Find(dbc, course.ID, 7, legacy.CourseStatusType)
	if err != nil || c == nil {
		t.Fatalf("Find: c=%v err=%v", c, err)
	}
	if c.CommentApproved != "complete" {
		t.Fatalf("Find: expected complete, got %q", c.CommentApproved)
	}

	meta, err := repo.Meta(dbc, id)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if meta["start"] != "2024-01-02 03:04:05" || meta["percent"] != "100" {
		t.Fatalf("Meta: unexpected %v", meta)
	}
	if v, ok, err := repo.MetaValue(dbc, id, "percent"); err != nil || !ok || v != "100" {
		t.Fatalf("MetaValue: v=%q ok=%v err=%v", v, ok, err)
	}
	if _, ok, err := repo.MetaValue(dbc, id, "missing"); err != nil || ok {
		t.Fatalf("MetaValue missing: ok=%v err=%v", ok, err)
	}

	if err := repo.Delete(dbc, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := repo.Count(dbc, course.ID, 7, legacy.CourseStatusType); n != 0 {
		t.Fatalf("Count after delete: %d", n)
	}
	if meta, _ := repo.Meta(dbc, id); len(meta) != 0 {
		t.Fatalf("Meta after delete: %v", meta)
	}
}

func TestActivityRepoListAndBulkDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRepo(db, testutil.Logger(t))

	now := time.Now()
	course := testutil.SeedCourse(t, tx)
	lesson := testutil.SeedLesson(t, tx, course.ID)
	first := testutil.SeedStatusComment(t, tx, course.ID, 1, legacy.CourseStatusType, "in-progress", now, nil)
	testutil.SeedStatusComment(t, tx, lesson.ID, 1, legacy.LessonStatusType, "complete", now, nil)
	testutil.SeedStatusComment(t, tx, lesson.ID, 2, legacy.LessonStatusType, "in-progress", now, nil)
	testutil.SeedStatusComment(t, tx, lesson.ID, 2, "review", "1", now, nil)

	rows, err := repo.ListAfterID(dbc, 0, []string{legacy.CourseStatusType, legacy.LessonStatusType}, 10)
	if err != nil {
		t.Fatalf("ListAfterID: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ListAfterID: expected 3, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].ID <= rows[i-1].ID {
			t.Fatalf("ListAfterID: not ordered by id")
		}
	}
	rows, err = repo.ListAfterID(dbc, first.ID, []string{legacy.CourseStatusType, legacy.LessonStatusType}, 1)
	if err != nil || len(rows) != 1 || rows[0].ID <= first.ID {
		t.Fatalf("ListAfterID cursor: rows=%d err=%v", len(rows), err)
	}
	page, err := repo.ListPage(dbc, []string{legacy.CourseStatusType, legacy.LessonStatusType}, 2, 10)
	if err != nil || len(page) != 1 || page[0].CommentPostID != lesson.ID || page[0].UserID != 2 {
		t.Fatalf("ListPage: rows=%d err=%v", len(page), err)
	}

	if n, err := repo.DeleteByPost(dbc, lesson.ID, legacy.LessonStatusType); err != nil || n != 2 {
		t.Fatalf("DeleteByPost: n=%d err=%v", n, err)
	}
	if n, err := repo.DeleteByUser(dbc, 1, legacy.CourseStatusType); err != nil || n != 1 {
		t.Fatalf("DeleteByUser: n=%d err=%v", n, err)
	}
	if n, _ := repo.Count(dbc, lesson.ID, 2, "review"); n != 1 {
		t.Fatalf("unrelated comment type was deleted")
	}
}
