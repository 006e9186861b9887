package migration

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/lms-progress/internal/data/repos/activity"
	"github.com/yungbote/lms-progress/internal/data/repos/options"
	"github.com/yungbote/lms-progress/internal/data/repos/structure"
	tablesrepo "github.com/yungbote/lms-progress/internal/data/repos/tables"
	"github.com/yungbote/lms-progress/internal/domain/legacy"
	"github.com/yungbote/lms-progress/internal/domain/progress"
	"github.com/yungbote/lms-progress/internal/jobs/background"
	"github.com/yungbote/lms-progress/internal/pkg/dbctx"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/realtime/bus"
)

const (
	VerifyJobName        = "progress_verification"
	VerifyResultOption   = "sensei_progress_verification_result"
	VerifyCompleteEvent  = "progress_verification_complete"
	maxMismatchSamples   = 20
	stateChecked         = "checked"
	stateMismatches      = "mismatches"
	stateMismatchSamples = "samples"
)

// VerifyResult is the outcome of a finished verification run.
type VerifyResult struct {
	ID         string   `json:"id"`
	Checked    int      `json:"checked"`
	Mismatches int      `json:"mismatches"`
	Samples    []string `json:"samples,omitempty"`
}

type VerifyDeps struct {
	Activity  activity.Repo
	Structure structure.Repo
	Progress  tablesrepo.ProgressRepo
	Options   options.Store
	Events    bus.Bus
	BatchSize int
	Log       *logger.Logger
}

// Verifier walks the legacy status comments page by page as a background job
// and counts those whose course or lesson row in the progress table is
// missing or disagrees on completion.
type Verifier struct {
	deps  VerifyDeps
	log   *logger.Logger
	sched *background.Scheduler
}

func NewVerifier(deps VerifyDeps) *Verifier {
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	return &Verifier{deps: deps, log: deps.Log.With("job", VerifyJobName)}
}

// Register wires the job into the background scheduler that Start uses.
func (v *Verifier) Register(s *background.Scheduler) {
	s.Register(VerifyJobName, v.Build, v.complete)
	v.sched = s
}

// Build rebuilds the job for run id. It is the background constructor.
func (v *Verifier) Build(id string, args map[string]any) (background.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("%s: missing job id", VerifyJobName)
	}
	stateful := background.NewStateful(v.deps.Options, id)
	var b *background.Batch
	b = background.NewBatch(stateful, VerifyJobName, v.deps.BatchSize, args, background.BatchRunnerFunc(
		func(ctx context.Context, offset int) (bool, error) {
			return v.runBatch(ctx, b, offset)
		},
	))
	return b, nil
}

// Start schedules a new verification run and returns its id.
func (v *Verifier) Start(ctx context.Context) (string, error) {
	if v.sched == nil {
		return "", fmt.Errorf("%s: not registered with a scheduler", VerifyJobName)
	}
	id := uuid.NewString()
	job, err := v.Build(id, nil)
	if err != nil {
		return "", err
	}
	if _, err := v.sched.ScheduleJob(ctx, job); err != nil {
		return "", err
	}
	return id, nil
}

func (v *Verifier) runBatch(ctx context.Context, b *background.Batch, offset int) (bool, error) {
	dbc := dbctx.With(ctx)
	comments, err := v.deps.Activity.ListPage(dbc, []string{legacy.CourseStatusType, legacy.LessonStatusType}, offset, b.BatchSize())
	if err != nil {
		return false, err
	}

	var checked, mismatches int
	var samples []string
	if _, err := b.GetState(ctx, stateChecked, &checked); err != nil {
		return false, err
	}
	if _, err := b.GetState(ctx, stateMismatches, &mismatches); err != nil {
		return false, err
	}
	if _, err := b.GetState(ctx, stateMismatchSamples, &samples); err != nil {
		return false, err
	}

	for _, c := range comments {
		problem, err := v.check(dbc, c)
		if err != nil {
			return false, err
		}
		checked++
		if problem == "" {
			continue
		}
		mismatches++
		if len(samples) < maxMismatchSamples {
			samples = append(samples, problem)
		}
	}

	for key, val := range map[string]any{stateChecked: checked, stateMismatches: mismatches, stateMismatchSamples: samples} {
		if err := b.SetState(ctx, key, val); err != nil {
			return false, err
		}
	}
	if err := b.Persist(ctx); err != nil {
		return false, err
	}
	return len(comments) == b.BatchSize(), nil
}

// check returns a description of the mismatch, or "" when the row agrees.
func (v *Verifier) check(dbc dbctx.Context, c *legacy.Comment) (string, error) {
	kind := progress.KindCourse
	if c.CommentType == legacy.LessonStatusType {
		kind = progress.KindLesson
	}
	row, err := v.deps.Progress.Find(dbc, c.CommentPostID, c.UserID, string(kind))
	if err != nil {
		return "", err
	}
	if row == nil {
		return fmt.Sprintf("comment %d: no %s row for post %d user %d", c.ID, kind, c.CommentPostID, c.UserID), nil
	}

	legacyDone := progress.Status(c.CommentApproved).IsTerminalSuccess()
	if kind == progress.KindCourse {
		legacyDone = progress.Status(c.CommentApproved) == progress.StatusComplete
	}
	tablesDone := progress.Status(row.Status) == progress.StatusComplete
	if legacyDone != tablesDone {
		return fmt.Sprintf("comment %d: %s status %q but table row is %q", c.ID, kind, c.CommentApproved, row.Status), nil
	}
	if kind == progress.KindLesson {
		courseID, err := v.deps.Structure.LessonCourseID(dbc, c.CommentPostID)
		if err != nil {
			return "", err
		}
		if courseID > 0 && (row.ParentPostID == nil || *row.ParentPostID != courseID) {
			return fmt.Sprintf("comment %d: lesson row parent does not match course %d", c.ID, courseID), nil
		}
	}
	return "", nil
}

func (v *Verifier) complete(ctx context.Context, job background.Job) error {
	b, ok := job.(*background.Batch)
	if !ok {
		return fmt.Errorf("%s: unexpected job type %T", VerifyJobName, job)
	}
	res := VerifyResult{ID: job.ID()}
	if _, err := b.GetState(ctx, stateChecked, &res.Checked); err != nil {
		return err
	}
	if _, err := b.GetState(ctx, stateMismatches, &res.Mismatches); err != nil {
		return err
	}
	if _, err := b.GetState(ctx, stateMismatchSamples, &res.Samples); err != nil {
		return err
	}
	if err := v.deps.Options.Set(ctx, VerifyResultOption, res); err != nil {
		return err
	}
	v.log.Info("Progress verification complete", "id", res.ID, "checked", res.Checked, "mismatches", res.Mismatches)
	if v.deps.Events != nil {
		if err := v.deps.Events.Publish(ctx, bus.Event{
			Name:  VerifyCompleteEvent,
			Props: map[string]any{"checked": res.Checked, "mismatches": res.Mismatches},
		}); err != nil {
			v.log.Warn("Publishing verification event failed", "error", err)
		}
	}
	return nil
}

// LastResult returns the most recent finished run, or nil.
func (v *Verifier) LastResult(ctx context.Context) (*VerifyResult, error) {
	var res VerifyResult
	ok, err := v.deps.Options.Get(ctx, VerifyResultOption, &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}
