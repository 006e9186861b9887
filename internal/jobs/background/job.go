package background

import "context"

// Job is a unit of work that may need several runs to finish.
type Job interface {
	Name() string
	// ID distinguishes instances of the same job; it keys persisted state.
	ID() string
	Args() map[string]any
	Run(ctx context.Context) error
	IsComplete() bool
	// End releases persisted state once the job is finished or abandoned.
	End(ctx context.Context) error
}
