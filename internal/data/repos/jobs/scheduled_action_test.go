package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
)

func TestScheduledActionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewScheduledActionRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	newAction := func(hook, hash string, at time.Time) *jobs.ScheduledAction {
		return &jobs.ScheduledAction{
			Hook:        hook,
			Args:        datatypes.JSON([]byte(`{}`)),
			ArgsHash:    hash,
			Status:      jobs.ActionStatusPending,
			ScheduledAt: at,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
	}

	early, err := repo.Create(dbc, newAction("hook_a", "h1", now.Add(-2*time.Minute)))
	if err != nil {
		t.Fatalf("Create early: %v", err)
	}
	late, err := repo.Create(dbc, newAction("hook_a", "h2", now.Add(-1*time.Minute)))
	if err != nil {
		t.Fatalf("Create late: %v", err)
	}
	future, err := repo.Create(dbc, newAction("hook_b", "h3", now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Create future: %v", err)
	}

	got, err := repo.GetByID(dbc, early.ID)
	if err != nil || got == nil || got.Hook != "hook_a" {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if miss, err := repo.GetByID(dbc, uuid.New()); err != nil || miss != nil {
		t.Fatalf("GetByID miss: got=%v err=%v", miss, err)
	}

	rows, err := repo.Find(dbc, ActionFilter{Hook: "hook_a", Statuses: []string{jobs.ActionStatusPending}})
	if err != nil || len(rows) != 2 {
		t.Fatalf("Find: err=%v len=%d", err, len(rows))
	}
	if rows[0].ID != early.ID {
		t.Fatalf("Find: expected oldest first")
	}
	if rows, err := repo.Find(dbc, ActionFilter{Hook: "hook_a", ArgsHash: "h2"}); err != nil || len(rows) != 1 || rows[0].ID != late.ID {
		t.Fatalf("Find by hash: err=%v rows=%v", err, rows)
	}

	claimed, err := repo.ClaimNextDue(dbc, now)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextDue: claimed=%v err=%v", claimed, err)
	}
	if claimed.ID != early.ID || claimed.Status != jobs.ActionStatusRunning || claimed.Attempts != 1 {
		t.Fatalf("ClaimNextDue: unexpected claim %+v", claimed)
	}
	claimed, err = repo.ClaimNextDue(dbc, now)
	if err != nil || claimed == nil || claimed.ID != late.ID {
		t.Fatalf("ClaimNextDue second: claimed=%v err=%v", claimed, err)
	}
	if claimed, err := repo.ClaimNextDue(dbc, now); err != nil || claimed != nil {
		t.Fatalf("ClaimNextDue drained: claimed=%v err=%v", claimed, err)
	}

	ok, err := repo.ClaimByID(dbc, future.ID, now)
	if err != nil || !ok {
		t.Fatalf("ClaimByID: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ClaimByID(dbc, future.ID, now); err != nil || ok {
		t.Fatalf("ClaimByID twice: ok=%v err=%v", ok, err)
	}

	ok, err = repo.UpdateFieldsUnlessStatus(dbc, early.ID, []string{jobs.ActionStatusComplete}, map[string]interface{}{
		"status":      jobs.ActionStatusComplete,
		"finished_at": now,
	})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsUnlessStatus: ok=%v err=%v", ok, err)
	}
	ok, err = repo.UpdateFieldsUnlessStatus(dbc, early.ID, []string{jobs.ActionStatusComplete}, map[string]interface{}{
		"status": jobs.ActionStatusFailed,
	})
	if err != nil || ok {
		t.Fatalf("UpdateFieldsUnlessStatus guarded: ok=%v err=%v", ok, err)
	}

	stale, err := repo.StaleRunning(dbc, now.Add(time.Minute))
	if err != nil || len(stale) != 2 {
		t.Fatalf("StaleRunning: err=%v len=%d", err, len(stale))
	}

	pending, err := repo.Create(dbc, newAction("hook_c", "h4", now))
	if err != nil {
		t.Fatalf("Create pending: %v", err)
	}
	n, err := repo.CancelPending(dbc, "hook_c", "h4")
	if err != nil || n != 1 {
		t.Fatalf("CancelPending: n=%d err=%v", n, err)
	}
	if got, _ := repo.GetByID(dbc, pending.ID); got == nil || got.Status != jobs.ActionStatusCanceled {
		t.Fatalf("CancelPending: expected canceled, got %+v", got)
	}

	if err := repo.AppendLog(dbc, &jobs.ActionLog{ActionID: early.ID, Hook: "hook_a", Status: jobs.ActionStatusRunning}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if err := repo.AppendLog(dbc, &jobs.ActionLog{ActionID: early.ID, Hook: "hook_a", Status: jobs.ActionStatusComplete, CreatedAt: time.Now().Add(time.Second)}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	logs, err := repo.Logs(dbc, early.ID)
	if err != nil || len(logs) != 2 || logs[1].Status != jobs.ActionStatusComplete {
		t.Fatalf("Logs: err=%v logs=%v", err, logs)
	}
}
