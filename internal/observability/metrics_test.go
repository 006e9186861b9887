package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
	"github.com/yungbote/lms-progress/internal/domain/jobs"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveAction("hook", "complete", time.Second)
	m.ObserveMigrationBatch("student_progress", 10, 1, false)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if got := m.ActionRuns("hook", "complete"); got != 0 {
		t.Fatalf("nil metrics: got %v", got)
	}
}

func TestExposition(t *testing.T) {
	m := New()
	m.ObserveAction("sensei_lms_migration_job", "complete", 50*time.Millisecond)
	m.ObserveAction("sensei_lms_migration_job", "complete", 2*time.Second)
	m.ObserveAction("sensei_lms_migration_job", "failed", time.Second)
	m.ObserveMigrationBatch("student_progress", 1000, 2, false)
	m.ObserveMigrationBatch("student_progress", 40, 0, false)

	if got := m.ActionRuns("sensei_lms_migration_job", "complete"); got != 2 {
		t.Fatalf("complete runs: want 2 got %v", got)
	}
	if got := m.MigrationRecords("student_progress"); got != 1040 {
		t.Fatalf("records: want 1040 got %v", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE lp_action_runs_total counter",
		`lp_action_runs_total{hook="sensei_lms_migration_job",status="complete"} 2`,
		`lp_action_run_duration_seconds_bucket{hook="sensei_lms_migration_job",status="complete",le="0.05"} 1`,
		`lp_action_run_duration_seconds_count{hook="sensei_lms_migration_job",status="complete"} 2`,
		`lp_migration_errors_total{migration="student_progress"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	// Label sets are written in sorted order.
	if strings.Index(out, `status="complete"} 2`) > strings.Index(out, `status="failed"} 1`) {
		t.Fatalf("series not sorted:\n%s", out)
	}
}

func TestCollectActionQueue(t *testing.T) {
	db := testutil.DB(t)
	now := time.Now().UTC()
	for _, st := range []string{jobs.ActionStatusPending, jobs.ActionStatusPending, jobs.ActionStatusFailed} {
		row := &jobs.ScheduledAction{
			ID:          uuid.New(),
			Hook:        "h",
			ArgsHash:    "x",
			Status:      st,
			ScheduledAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed action: %v", err)
		}
	}

	m := New()
	if err := m.CollectActionQueue(context.Background(), db); err != nil {
		t.Fatalf("CollectActionQueue: %v", err)
	}
	if got := m.ActionDepth(jobs.ActionStatusPending); got != 2 {
		t.Fatalf("pending: want 2 got %v", got)
	}
	if got := m.ActionDepth(jobs.ActionStatusFailed); got != 1 {
		t.Fatalf("failed: want 1 got %v", got)
	}
	if got := m.ActionDepth(jobs.ActionStatusRunning); got != 0 {
		t.Fatalf("running: want 0 got %v", got)
	}
}

func TestOtelHeadersParsing(t *testing.T) {
	h := otelHeaders(" a=1, b = 2 ,broken,=x")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("unexpected headers: %#v", h)
	}
	if otelHeaders("") != nil {
		t.Fatalf("empty headers should be nil")
	}
}
