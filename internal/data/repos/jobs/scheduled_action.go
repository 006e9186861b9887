package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

// ActionFilter selects scheduled actions. Empty fields match everything.
type ActionFilter struct {
	Hook     string
	ArgsHash string
	Group    string
	Statuses []string
	Limit    int
}

type ScheduledActionRepo interface {
	Create(dbc dbctx.Context, action *jobs.ScheduledAction) (*jobs.ScheduledAction, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*jobs.ScheduledAction, error)
	Find(dbc dbctx.Context, filter ActionFilter) ([]*jobs.ScheduledAction, error)
	ClaimNextDue(dbc dbctx.Context, now time.Time) (*jobs.ScheduledAction, error)
	ClaimByID(dbc dbctx.Context, id uuid.UUID, now time.Time) (bool, error)
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	CancelPending(dbc dbctx.Context, hook, argsHash string) (int64, error)
	StaleRunning(dbc dbctx.Context, cutoff time.Time) ([]*jobs.ScheduledAction, error)
	AppendLog(dbc dbctx.Context, entry *jobs.ActionLog) error
	Logs(dbc dbctx.Context, actionID uuid.UUID) ([]*jobs.ActionLog, error)
}

type scheduledActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScheduledActionRepo(db *gorm.DB, baseLog *logger.Logger) ScheduledActionRepo {
	return &scheduledActionRepo{
		db:  db,
		log: baseLog.With("repo", "ScheduledActionRepo"),
	}
}

func (r *scheduledActionRepo) Create(dbc dbctx.Context, action *jobs.ScheduledAction) (*jobs.ScheduledAction, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if action == nil {
		return nil, errors.New("nil scheduled action")
	}
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(action).Error; err != nil {
		return nil, err
	}
	return action, nil
}

func (r *scheduledActionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*jobs.ScheduledAction, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var action jobs.ScheduledAction
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&action).Error
	if err != nil {
		return nil, err
	}
	if action.ID == uuid.Nil {
		return nil, nil
	}
	return &action, nil
}

// Find returns matching actions, oldest scheduled first.
func (r *scheduledActionRepo) Find(dbc dbctx.Context, filter ActionFilter) ([]*jobs.ScheduledAction, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&jobs.ScheduledAction{})
	if filter.Hook != "" {
		q = q.Where("hook = ?", filter.Hook)
	}
	if filter.ArgsHash != "" {
		q = q.Where("args_hash = ?", filter.ArgsHash)
	}
	if filter.Group != "" {
		q = q.Where("group_name = ?", filter.Group)
	}
	if len(filter.Statuses) == 1 {
		q = q.Where("status = ?", filter.Statuses[0])
	} else if len(filter.Statuses) > 1 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []*jobs.ScheduledAction
	if err := q.Order("scheduled_at ASC").Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scheduledActionRepo) ClaimNextDue(dbc dbctx.Context, now time.Time) (*jobs.ScheduledAction, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var claimed *jobs.ScheduledAction
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var action jobs.ScheduledAction
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND scheduled_at <= ?", jobs.ActionStatusPending, now).
			Order("scheduled_at ASC").
			Order("created_at ASC").
			First(&action).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&jobs.ScheduledAction{}).
			Where("id = ? AND status = ?", action.ID, jobs.ActionStatusPending).
			Updates(map[string]interface{}{
				"status":     jobs.ActionStatusRunning,
				"attempts":   gorm.Expr("attempts + 1"),
				"started_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		action.Status = jobs.ActionStatusRunning
		action.Attempts++
		action.StartedAt = &now
		claimed = &action
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ClaimByID moves a pending action to running. It reports false when the
// action was not pending anymore.
func (r *scheduledActionRepo) ClaimByID(dbc dbctx.Context, id uuid.UUID, now time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&jobs.ScheduledAction{}).
		Where("id = ? AND status = ?", id, jobs.ActionStatusPending).
		Updates(map[string]interface{}{
			"status":     jobs.ActionStatusRunning,
			"attempts":   gorm.Expr("attempts + 1"),
			"started_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *scheduledActionRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&jobs.ScheduledAction{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *scheduledActionRepo) CancelPending(dbc dbctx.Context, hook, argsHash string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&jobs.ScheduledAction{}).
		Where("hook = ? AND status = ?", hook, jobs.ActionStatusPending)
	if argsHash != "" {
		q = q.Where("args_hash = ?", argsHash)
	}
	now := time.Now()
	res := q.Updates(map[string]interface{}{
		"status":      jobs.ActionStatusCanceled,
		"finished_at": now,
		"updated_at":  now,
	})
	return res.RowsAffected, res.Error
}

func (r *scheduledActionRepo) StaleRunning(dbc dbctx.Context, cutoff time.Time) ([]*jobs.ScheduledAction, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*jobs.ScheduledAction
	err := transaction.WithContext(dbc.Ctx).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", jobs.ActionStatusRunning, cutoff).
		Order("started_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scheduledActionRepo) AppendLog(dbc dbctx.Context, entry *jobs.ActionLog) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).Create(entry).Error
}

func (r *scheduledActionRepo) Logs(dbc dbctx.Context, actionID uuid.UUID) ([]*jobs.ActionLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*jobs.ActionLog
	err := transaction.WithContext(dbc.Ctx).
		Where("action_id = ?", actionID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
