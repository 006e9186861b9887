package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jobsrepo "github.com/yungbote/lms-progress/internal/data/repos/jobs"
	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/jobs/runtime"
)

func TestActionListAndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	q := actions.NewQueue(jobsrepo.NewScheduledActionRepo(db, log), runtime.NewRegistry(), log)
	ctx := context.Background()

	first, err := q.ScheduleSingleAction(ctx, "hook_a", map[string]any{"n": 1}, false)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := q.ScheduleAt(ctx, "hook_b", nil, "", time.Now().UTC().Add(time.Hour), false); err != nil {
		t.Fatalf("schedule later: %v", err)
	}

	h := NewActionHandler(q)
	r := gin.New()
	r.GET("/api/actions", h.List)
	r.GET("/api/actions/:id/logs", h.Logs)

	rec := do(r, http.MethodGet, "/api/actions?hook=hook_a&status=pending")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got %d", rec.Code)
	}
	var list struct {
		Actions []jobs.ScheduledAction `json:"actions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Actions) != 1 || list.Actions[0].ID != first {
		t.Fatalf("unexpected actions: %+v", list.Actions)
	}

	rec = do(r, http.MethodGet, "/api/actions?limit=0")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: want 400 got %d", rec.Code)
	}

	rec = do(r, http.MethodGet, "/api/actions/"+first.String()+"/logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("logs: got %d", rec.Code)
	}
	var logs struct {
		Logs []jobs.ActionLog `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(logs.Logs) == 0 || logs.Logs[0].Status != jobs.ActionStatusPending {
		t.Fatalf("expected a pending log entry, got %+v", logs.Logs)
	}

	rec = do(r, http.MethodGet, "/api/actions/"+uuid.Nil.String()[:8]+"/logs")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want 400 got %d", rec.Code)
	}
}
