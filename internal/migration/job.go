package migration

import "context"

// Job wraps a migration and reports completion once a run moves nothing.
type Job struct {
	m        Migration
	complete bool
	lastRun  int
}

func NewJob(m Migration) *Job { return &Job{m: m} }

func (j *Job) Name() string         { return j.m.Name() }
func (j *Job) Migration() Migration { return j.m }
func (j *Job) IsComplete() bool     { return j.complete }
func (j *Job) Errors() []string     { return j.m.Errors() }

// LastRun is the count the last Run reported.
func (j *Job) LastRun() int { return j.lastRun }

func (j *Job) Run(ctx context.Context) error {
	n, err := j.m.Run(ctx, false)
	if err != nil {
		return err
	}
	j.lastRun = n
	if n == 0 {
		j.complete = true
	}
	return nil
}
