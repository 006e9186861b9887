package store

import (
	"fmt"
	"time"

	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/domain/tables"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
)

// Tables maps progress onto rows of sensei_lms_progress.
type Tables struct {
	Progress tablesrepo.ProgressRepo
	Loc      *time.Location
}

// Create starts progress for (post, user, kind). An existing row is reset to
// in-progress, the same way starting a status comment overwrites it, so a
// repeated create never trips the unique key.
func (t *Tables) Create(dbc dbctx.Context, postID, userID int64, kind progress.Kind, parentID *int64) (*progress.Fields, error) {
	now := time.Now().Unix()
	// completed_at stays NULL: it is only set for terminal statuses.
	row := &tables.Progress{
		PostID:       postID,
		UserID:       userID,
		ParentPostID: parentID,
		Type:         string(kind),
		Status:       string(progress.StatusInProgress),
		StartedAt:    &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	wrote, err := t.Progress.CreateIfAbsent(dbc, row)
	if err != nil {
		return nil, err
	}
	if wrote && row.ID != 0 {
		return t.fields(row), nil
	}

	existing, err := t.Progress.Find(dbc, postID, userID, string(kind))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("progress row %s %d user %d missing after insert", kind, postID, userID)
	}
	if !wrote {
		existing.Status = string(progress.StatusInProgress)
		existing.StartedAt = &now
		existing.CompletedAt = nil
		existing.UpdatedAt = now
		if err := t.Progress.UpdateState(dbc, existing); err != nil {
			return nil, err
		}
	}
	return t.fields(existing), nil
}

func (t *Tables) Get(dbc dbctx.Context, postID, userID int64, kind progress.Kind) (*progress.Fields, error) {
	row, err := t.Progress.Find(dbc, postID, userID, string(kind))
	if err != nil || row == nil {
		return nil, err
	}
	return t.fields(row), nil
}

func (t *Tables) Has(dbc dbctx.Context, postID, userID int64, kind progress.Kind) (bool, error) {
	return t.Progress.Exists(dbc, postID, userID, string(kind))
}

// Save updates status, started_at, completed_at and updated_at by id.
func (t *Tables) Save(dbc dbctx.Context, f progress.Fields) error {
	if !f.Status.IsTerminalSuccess() {
		f.CompletedAt = nil
	}
	return t.Progress.UpdateState(dbc, &tables.Progress{
		ID:          f.ID,
		Status:      string(f.Status),
		StartedAt:   ToEpoch(f.StartedAt),
		CompletedAt: ToEpoch(f.CompletedAt),
		UpdatedAt:   time.Now().Unix(),
	})
}

func (t *Tables) fields(row *tables.Progress) *progress.Fields {
	return &progress.Fields{
		ID:          row.ID,
		SubjectID:   row.PostID,
		UserID:      row.UserID,
		ParentID:    row.ParentPostID,
		Status:      progress.Status(row.Status),
		StartedAt:   FromEpoch(row.StartedAt, t.Loc),
		CompletedAt: FromEpoch(row.CompletedAt, t.Loc),
		CreatedAt:   time.Unix(row.CreatedAt, 0).In(t.Loc),
		UpdatedAt:   time.Unix(row.UpdatedAt, 0).In(t.Loc),
	}
}
