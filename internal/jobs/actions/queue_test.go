package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobsrepo "github.com/yungbote/lms-progress/internal/data/repos/jobs"
	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/jobs/runtime"
)

func newQueue(t *testing.T) *Queue {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return NewQueue(jobsrepo.NewScheduledActionRepo(db, log), runtime.NewRegistry(), log)
}

type failures struct {
	mu  sync.Mutex
	all []Failure
}

func (f *failures) listen(_ context.Context, fl Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all = append(f.all, fl)
}

func TestScheduleSingleActionDeduplicatesPending(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	args := map[string]any{"name": "student_progress"}

	first, err := q.ScheduleSingleAction(ctx, "hook_a", args, false)
	require.NoError(t, err)
	second, err := q.ScheduleSingleAction(ctx, "hook_a", map[string]any{"name": "student_progress"}, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ids, err := q.GetScheduledActions(ctx, Filter{Hook: "hook_a", Statuses: []string{jobs.ActionStatusPending}})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	other, err := q.ScheduleSingleAction(ctx, "hook_a", map[string]any{"name": "quiz_submissions"}, false)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	dup, err := q.ScheduleSingleAction(ctx, "hook_a", args, true)
	require.NoError(t, err)
	assert.NotEqual(t, first, dup)

	ids, err = q.GetScheduledActions(ctx, Filter{Hook: "hook_a", Args: args})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestRunningActionMayRequeueItself(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	args := map[string]any{"n": 1}

	var requeued uuid.UUID
	require.NoError(t, q.Registry().Register(runtime.HandlerFunc{Name: "self", Fn: func(c *runtime.Context) error {
		id, err := q.ScheduleSingleAction(c.Ctx, "self", args, false)
		requeued = id
		return err
	}}))

	first, err := q.ScheduleSingleAction(ctx, "self", args, false)
	require.NoError(t, err)

	ran, err := q.RunDue(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, ran)
	assert.NotEqual(t, uuid.Nil, requeued)
	assert.NotEqual(t, first, requeued)

	next, err := q.NextScheduled(ctx, "self", args)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, requeued, next.ID)
	assert.Equal(t, jobs.ActionStatusPending, next.Status)
}

func TestExecuteOutcomes(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	var seen failures
	q.OnFailure(seen.listen)

	require.NoError(t, q.Registry().Register(runtime.HandlerFunc{Name: "ok", Fn: func(*runtime.Context) error { return nil }}))
	require.NoError(t, q.Registry().Register(runtime.HandlerFunc{Name: "err", Fn: func(*runtime.Context) error { return errors.New("boom") }}))
	require.NoError(t, q.Registry().Register(runtime.HandlerFunc{Name: "panic", Fn: func(*runtime.Context) error { panic("kaboom") }}))

	okID, err := q.ScheduleSingleAction(ctx, "ok", nil, false)
	require.NoError(t, err)
	errID, err := q.ScheduleSingleAction(ctx, "err", nil, false)
	require.NoError(t, err)
	panicID, err := q.ScheduleSingleAction(ctx, "panic", nil, false)
	require.NoError(t, err)
	missingID, err := q.ScheduleSingleAction(ctx, "missing", nil, false)
	require.NoError(t, err)

	claimed, err := q.RunByID(ctx, okID)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = q.RunByID(ctx, okID)
	require.NoError(t, err)
	assert.False(t, claimed, "complete action must not run again")

	_, err = q.RunByID(ctx, errID)
	assert.EqualError(t, err, "boom")
	_, err = q.RunByID(ctx, panicID)
	assert.ErrorContains(t, err, "kaboom")
	_, err = q.RunByID(ctx, missingID)
	assert.ErrorIs(t, err, ErrNoHandler)

	status := func(id uuid.UUID) string {
		rows, err := q.Actions(ctx, Filter{})
		require.NoError(t, err)
		for _, r := range rows {
			if r.ID == id {
				return r.Status
			}
		}
		return ""
	}
	assert.Equal(t, jobs.ActionStatusComplete, status(okID))
	assert.Equal(t, jobs.ActionStatusFailed, status(errID))
	assert.Equal(t, jobs.ActionStatusFailed, status(panicID))

	require.Len(t, seen.all, 3)
	assert.Equal(t, FailureExecution, seen.all[0].Kind)
	assert.Equal(t, FailureUnexpectedShutdown, seen.all[1].Kind)
	assert.Equal(t, FailureExecution, seen.all[2].Kind)

	logs, err := q.Logs(ctx, okID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, jobs.ActionStatusComplete, logs[len(logs)-1].Status)
}

func TestUnscheduleAndFuture(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	_, err := q.ScheduleAt(ctx, "later", nil, "g1", time.Now().Add(time.Hour), false)
	require.NoError(t, err)
	ran, err := q.RunDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, ran, "future actions are not due")

	ids, err := q.GetScheduledActions(ctx, Filter{Group: "g1"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	n, err := q.Unschedule(ctx, "later", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	next, err := q.NextScheduled(ctx, "later", nil)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestFailStale(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	var seen failures
	q.OnFailure(seen.listen)

	_, err := q.ScheduleSingleAction(ctx, "slow", nil, false)
	require.NoError(t, err)
	action, err := q.ClaimNextDue(ctx)
	require.NoError(t, err)
	require.NotNil(t, action)

	q.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	n, err := q.FailStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, seen.all, 1)
	assert.Equal(t, FailureUnexpectedShutdown, seen.all[0].Kind)

	n, err = q.FailStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

type recordingDispatcher struct{ got []uuid.UUID }

func (d *recordingDispatcher) Dispatch(_ context.Context, a *jobs.ScheduledAction) error {
	d.got = append(d.got, a.ID)
	return nil
}

func TestDispatcherSeesNewActions(t *testing.T) {
	q := newQueue(t)
	d := &recordingDispatcher{}
	q.SetDispatcher(d)

	id, err := q.ScheduleSingleAction(context.Background(), "hook", nil, false)
	require.NoError(t, err)
	_, err = q.ScheduleSingleAction(context.Background(), "hook", nil, false)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, d.got)
}
