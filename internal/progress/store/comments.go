package store

import (
	"fmt"
	"time"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/pkg/pointers"
)

// Comments maps progress onto status comments of the activity store.
type Comments struct {
	Activity activity.Repo
	Loc      *time.Location
	Log      *logger.Logger
}

// Start writes the initial in-progress comment.
func (c *Comments) Start(dbc dbctx.Context, postID, userID int64, commentType string, extra map[string]string) error {
	now := time.Now()
	meta := map[string]string{MetaStart: FormatLegacyDate(now, c.Loc)}
	for k, v := range extra {
		meta[k] = v
	}
	_, err := c.Activity.UpdateStatus(dbc, activity.Status{
		PostID:   postID,
		UserID:   userID,
		Type:     commentType,
		Status:   string(progress.StatusInProgress),
		Metadata: meta,
		Date:     now,
	})
	return err
}

// Load returns the stored fields for (post, user, type) or nil when there is no
// comment. The comment date doubles as completed_at for terminal statuses.
func (c *Comments) Load(dbc dbctx.Context, postID, userID int64, commentType string) (*progress.Fields, *progress.Metadata, error) {
	comment, err := c.Activity.Find(dbc, postID, userID, commentType)
	if err != nil {
		return nil, nil, err
	}
	if comment == nil {
		return nil, nil, nil
	}

	date := comment.CommentDate.In(c.Loc)
	status := progress.Status(comment.CommentApproved)
	f := &progress.Fields{
		ID:        comment.ID,
		SubjectID: postID,
		UserID:    userID,
		Status:    status,
		CreatedAt: date,
		UpdatedAt: date,
	}

	start, ok, err := c.Activity.MetaValue(dbc, comment.ID, MetaStart)
	if err != nil {
		return nil, nil, err
	}
	if ok && start != "" {
		if t, perr := ParseLegacyDate(start, c.Loc); perr == nil {
			f.StartedAt = &t
		} else {
			c.Log.Warn("Unparseable start meta, using comment date", "comment_id", comment.ID, "value", start)
		}
	}
	if f.StartedAt == nil {
		f.StartedAt = pointers.Ptr(date)
	}
	if status.IsTerminalSuccess() {
		f.CompletedAt = pointers.Ptr(date)
	}

	commentID := comment.ID
	ctx := dbc.Context()
	meta := progress.NewLazyMetadata(func() (map[string]string, error) {
		all, err := c.Activity.Meta(dbctx.With(ctx), commentID)
		if err != nil {
			return nil, fmt.Errorf("load comment meta %d: %w", commentID, err)
		}
		delete(all, MetaStart)
		return all, nil
	})
	return f, meta, nil
}

// Has is an existence check that does not load the comment.
func (c *Comments) Has(dbc dbctx.Context, postID, userID int64, commentType string) (bool, error) {
	n, err := c.Activity.Count(dbc, postID, userID, commentType)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Save writes status, start and the metadata bag. The comment date becomes
// completed_at for terminal statuses, otherwise now.
func (c *Comments) Save(dbc dbctx.Context, postID, userID int64, commentType string, f progress.Fields, meta *progress.Metadata) error {
	values := map[string]string{}
	if meta != nil {
		all, err := meta.All()
		if err != nil {
			return err
		}
		for k, v := range all {
			values[k] = v
		}
	}
	if f.StartedAt != nil {
		values[MetaStart] = FormatLegacyDate(*f.StartedAt, c.Loc)
	}
	date := time.Now()
	if f.Status.IsTerminalSuccess() && f.CompletedAt != nil {
		date = *f.CompletedAt
	}
	_, err := c.Activity.UpdateStatus(dbc, activity.Status{
		PostID:   postID,
		UserID:   userID,
		Type:     commentType,
		Status:   string(f.Status),
		Metadata: values,
		Date:     date,
	})
	return err
}
