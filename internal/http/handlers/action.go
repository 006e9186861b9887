package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/http/response"
	"github.com/yungbote/lms-progress/internal/jobs/actions"
)

type ActionService interface {
	Actions(ctx context.Context, filter actions.Filter) ([]*jobs.ScheduledAction, error)
	Logs(ctx context.Context, id uuid.UUID) ([]*jobs.ActionLog, error)
}

type ActionHandler struct {
	actions ActionService
}

func NewActionHandler(svc ActionService) *ActionHandler {
	return &ActionHandler{actions: svc}
}

const (
	defaultActionLimit = 50
	maxActionLimit     = 500
)

// GET /api/actions?hook=&status=pending,running&limit=
func (h *ActionHandler) List(c *gin.Context) {
	filter := actions.Filter{Hook: strings.TrimSpace(c.Query("hook")), Limit: defaultActionLimit}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, s)
			}
		}
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		filter.Limit = min(n, maxActionLimit)
	}
	rows, err := h.actions.Actions(c.Request.Context(), filter)
	if err != nil {
		response.RespondAPIError(c, err, "list_actions_failed")
		return
	}
	if rows == nil {
		rows = []*jobs.ScheduledAction{}
	}
	response.RespondOK(c, gin.H{"actions": rows})
}

// GET /api/actions/:id/logs
func (h *ActionHandler) Logs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_action_id", err)
		return
	}
	logs, err := h.actions.Logs(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err, "action_logs_failed")
		return
	}
	if logs == nil {
		logs = []*jobs.ActionLog{}
	}
	response.RespondOK(c, gin.H{"logs": logs})
}
