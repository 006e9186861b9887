package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lms-progress/internal/http/response"
	"github.com/yungbote/lms-progress/internal/migration"
)

// MigrationService is the part of the migration job scheduler the admin tool drives.
type MigrationService interface {
	Schedule(ctx context.Context) error
	DryRun(ctx context.Context) ([]migration.DryRunResult, error)
	Report(ctx context.Context) (*migration.Report, error)
	ClearState(ctx context.Context) error
}

type VerificationService interface {
	Start(ctx context.Context) (string, error)
	LastResult(ctx context.Context) (*migration.VerifyResult, error)
}

type MigrationHandler struct {
	migrations MigrationService
	verifier   VerificationService
}

func NewMigrationHandler(migrations MigrationService, verifier VerificationService) *MigrationHandler {
	return &MigrationHandler{migrations: migrations, verifier: verifier}
}

var errMigrationRunning = errors.New("migration already in progress; pass force=1 to restart it")

// POST /api/migration/run[?dry_run=1][&force=1]
func (h *MigrationHandler) Run(c *gin.Context) {
	ctx := c.Request.Context()
	if truthy(c.Query("dry_run")) {
		results, err := h.migrations.DryRun(ctx)
		if err != nil {
			response.RespondAPIError(c, err, "dry_run_failed")
			return
		}
		if results == nil {
			results = []migration.DryRunResult{}
		}
		response.RespondOK(c, gin.H{"dry_run": true, "results": results})
		return
	}

	current, err := h.migrations.Report(ctx)
	if err != nil {
		response.RespondAPIError(c, err, "status_failed")
		return
	}
	if current.Running() && !truthy(c.Query("force")) {
		response.RespondError(c, http.StatusConflict, "migration_in_progress", errMigrationRunning)
		return
	}
	if err := h.migrations.Schedule(ctx); err != nil {
		response.RespondAPIError(c, err, "schedule_failed")
		return
	}
	report, err := h.migrations.Report(ctx)
	if err != nil {
		response.RespondAPIError(c, err, "status_failed")
		return
	}
	response.RespondAccepted(c, gin.H{"migration": report})
}

// GET /api/migration/status
func (h *MigrationHandler) Status(c *gin.Context) {
	report, err := h.migrations.Report(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err, "status_failed")
		return
	}
	response.RespondOK(c, gin.H{"migration": report})
}

// POST /api/migration/clear
func (h *MigrationHandler) Clear(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.migrations.ClearState(ctx); err != nil {
		response.RespondAPIError(c, err, "clear_failed")
		return
	}
	report, err := h.migrations.Report(ctx)
	if err != nil {
		response.RespondAPIError(c, err, "status_failed")
		return
	}
	response.RespondOK(c, gin.H{"migration": report})
}

// POST /api/migration/verify
func (h *MigrationHandler) StartVerification(c *gin.Context) {
	if h.verifier == nil {
		response.RespondError(c, http.StatusNotImplemented, "verification_disabled", nil)
		return
	}
	id, err := h.verifier.Start(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err, "verification_failed")
		return
	}
	response.RespondAccepted(c, gin.H{"id": id})
}

// GET /api/migration/verify
func (h *MigrationHandler) Verification(c *gin.Context) {
	if h.verifier == nil {
		response.RespondError(c, http.StatusNotImplemented, "verification_disabled", nil)
		return
	}
	res, err := h.verifier.LastResult(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err, "verification_failed")
		return
	}
	if res == nil {
		response.RespondError(c, http.StatusNotFound, "no_verification", errors.New("no verification run has finished"))
		return
	}
	response.RespondOK(c, gin.H{"verification": res})
}

func truthy(v string) bool {
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
