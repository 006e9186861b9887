package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lms-progress/internal/migration"
	pkgerrors "github.com/yungbote/lms-progress/internal/pkg/errors"
)

type fakeMigrations struct {
	status    migration.Status
	pending   int
	scheduled int
	cleared   int
	dryRun    []migration.DryRunResult
	err       error
}

func (f *fakeMigrations) Schedule(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled++
	f.status = migration.StatusInProgress
	return nil
}

func (f *fakeMigrations) DryRun(context.Context) ([]migration.DryRunResult, error) {
	return f.dryRun, f.err
}

func (f *fakeMigrations) Report(context.Context) (*migration.Report, error) {
	st := f.status
	if st == "" {
		st = migration.StatusNotStarted
	}
	return &migration.Report{Status: st, Errors: []string{}, Pending: f.pending, Description: "Not started."}, nil
}

func (f *fakeMigrations) ClearState(context.Context) error {
	f.cleared++
	f.status = migration.StatusNotStarted
	return nil
}

type fakeVerifier struct {
	result *migration.VerifyResult
}

func (f *fakeVerifier) Start(context.Context) (string, error) { return "run-1", nil }
func (f *fakeVerifier) LastResult(context.Context) (*migration.VerifyResult, error) {
	return f.result, nil
}

func newMigrationRouter(m MigrationService, v VerificationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMigrationHandler(m, v)
	r := gin.New()
	r.POST("/api/migration/run", h.Run)
	r.GET("/api/migration/status", h.Status)
	r.POST("/api/migration/clear", h.Clear)
	r.POST("/api/migration/verify", h.StartVerification)
	r.GET("/api/migration/verify", h.Verification)
	return r
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMigrationRunSchedulesChain(t *testing.T) {
	m := &fakeMigrations{}
	r := newMigrationRouter(m, nil)

	rec := do(r, http.MethodPost, "/api/migration/run")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("run: got %d body=%s", rec.Code, rec.Body.String())
	}
	if m.scheduled != 1 {
		t.Fatalf("expected one schedule, got %d", m.scheduled)
	}

	var body struct {
		Migration migration.Report `json:"migration"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Migration.Status != migration.StatusInProgress {
		t.Fatalf("unexpected status %q", body.Migration.Status)
	}

	rec = do(r, http.MethodPost, "/api/migration/run")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second run: want 409 got %d", rec.Code)
	}
	rec = do(r, http.MethodPost, "/api/migration/run?force=1")
	if rec.Code != http.StatusAccepted || m.scheduled != 2 {
		t.Fatalf("forced run: code=%d scheduled=%d", rec.Code, m.scheduled)
	}
}

func TestMigrationDryRun(t *testing.T) {
	m := &fakeMigrations{dryRun: []migration.DryRunResult{{Name: "student_progress", Count: 12}}}
	r := newMigrationRouter(m, nil)

	rec := do(r, http.MethodPost, "/api/migration/run?dry_run=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("dry run: got %d", rec.Code)
	}
	var body struct {
		DryRun  bool                     `json:"dry_run"`
		Results []migration.DryRunResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.DryRun || len(body.Results) != 1 || body.Results[0].Count != 12 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if m.scheduled != 0 {
		t.Fatalf("dry run must not schedule")
	}
}

func TestMigrationErrorsMapToStatus(t *testing.T) {
	m := &fakeMigrations{err: fmt.Errorf("no migrations: %w", pkgerrors.ErrInvalidArgument)}
	r := newMigrationRouter(m, nil)

	rec := do(r, http.MethodPost, "/api/migration/run")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400 got %d", rec.Code)
	}

	m.err = errors.New("db down")
	rec = do(r, http.MethodPost, "/api/migration/run?dry_run=true")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500 got %d", rec.Code)
	}
}

func TestMigrationStatusAndClear(t *testing.T) {
	m := &fakeMigrations{status: migration.StatusFailed}
	r := newMigrationRouter(m, nil)

	rec := do(r, http.MethodGet, "/api/migration/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	rec = do(r, http.MethodPost, "/api/migration/clear")
	if rec.Code != http.StatusOK || m.cleared != 1 {
		t.Fatalf("clear: code=%d cleared=%d", rec.Code, m.cleared)
	}
}

func TestVerificationEndpoints(t *testing.T) {
	v := &fakeVerifier{}
	r := newMigrationRouter(&fakeMigrations{}, v)

	if rec := do(r, http.MethodGet, "/api/migration/verify"); rec.Code != http.StatusNotFound {
		t.Fatalf("no result yet: want 404 got %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/migration/verify"); rec.Code != http.StatusAccepted {
		t.Fatalf("start: want 202 got %d", rec.Code)
	}
	v.result = &migration.VerifyResult{ID: "run-1", Checked: 3}
	if rec := do(r, http.MethodGet, "/api/migration/verify"); rec.Code != http.StatusOK {
		t.Fatalf("result: want 200 got %d", rec.Code)
	}

	disabled := newMigrationRouter(&fakeMigrations{}, nil)
	if rec := do(disabled, http.MethodPost, "/api/migration/verify"); rec.Code != http.StatusNotImplemented {
		t.Fatalf("disabled: want 501 got %d", rec.Code)
	}
}

func TestMigrationRunConflictsWhileFirstActionPending(t *testing.T) {
	m := &fakeMigrations{status: migration.StatusNotStarted, pending: 1}
	r := newMigrationRouter(m, nil)

	if rec := do(r, http.MethodPost, "/api/migration/run"); rec.Code != http.StatusConflict {
		t.Fatalf("scheduled but not started: want 409 got %d", rec.Code)
	}
	if m.scheduled != 0 {
		t.Fatalf("guard should not reschedule, scheduled=%d", m.scheduled)
	}

	m.status, m.pending = migration.StatusComplete, 0
	if rec := do(r, http.MethodPost, "/api/migration/run"); rec.Code != http.StatusAccepted {
		t.Fatalf("after completion: want 202 got %d", rec.Code)
	}
}
