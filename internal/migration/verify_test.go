package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	jobsrepo "github.com/yungbote/lms-progress/internal/data/repos/jobs"
	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/jobs/actions"
	"github.com/yungbote/lms-progress/internal/jobs/background"
	"github.com/yungbote/lms-progress/internal/jobs/runtime"
	"github.com/yungbote/lms-progress/internal/realtime/bus"
)

func TestVerifierCountsMismatchesAcrossBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log := testutil.Logger(t)

	course := testutil.SeedCourse(t, f.db)
	lesson := testutil.SeedLesson(t, f.db, course.ID)
	now := time.Now().UTC()
	testutil.SeedStatusComment(t, f.db, course.ID, 5, legacy.CourseStatusType, "complete", now, nil)
	testutil.SeedStatusComment(t, f.db, lesson.ID, 5, legacy.LessonStatusType, "complete", now, nil)

	_, err := f.studentProgress(t, 10).Run(ctx, false)
	require.NoError(t, err)

	// Written to the legacy store after the migration ran.
	testutil.SeedStatusComment(t, f.db, course.ID, 9, legacy.CourseStatusType, "in-progress", now, nil)

	var events []bus.Event
	eb := bus.NewLocalBus(log)
	require.NoError(t, eb.StartForwarder(ctx, func(ev bus.Event) { events = append(events, ev) }))

	queue := actions.NewQueue(jobsrepo.NewScheduledActionRepo(f.db, log), runtime.NewRegistry(), log)
	sched := background.NewScheduler(queue, log)
	require.NoError(t, sched.Init())

	v := NewVerifier(VerifyDeps{
		Activity:  activity.NewRepo(f.db, log),
		Structure: structure.NewRepo(f.db, log),
		Progress:  f.progress,
		Options:   f.opts,
		Events:    eb,
		BatchSize: 2,
		Log:       log,
	})
	v.Register(sched)

	res, err := v.LastResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, res)

	id, err := v.Start(ctx)
	require.NoError(t, err)
	ran, err := queue.RunDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, ran, "two pages of two")

	res, err = v.LastResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, id, res.ID)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Mismatches)
	require.Len(t, res.Samples, 1)
	assert.Contains(t, res.Samples[0], "no course row")

	require.Len(t, events, 1)
	assert.Equal(t, VerifyCompleteEvent, events[0].Name)

	// Job state is dropped once the result is stored.
	var state map[string]any
	ok, err := f.opts.Get(ctx, background.StateKey(id), &state)
	require.NoError(t, err)
	assert.False(t, ok)
}
