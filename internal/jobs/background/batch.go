package background

import (
	"context"
	"fmt"
)

// BatchRunner processes one page starting at offset and reports whether more remain.
type BatchRunner interface {
	RunBatch(ctx context.Context, offset int) (hasMore bool, err error)
}

type BatchRunnerFunc func(ctx context.Context, offset int) (bool, error)

func (f BatchRunnerFunc) RunBatch(ctx context.Context, offset int) (bool, error) { return f(ctx, offset) }

const offsetKey = "offset"

// Batch drives a BatchRunner one page per Run, persisting the offset between runs.
type Batch struct {
	*Stateful
	name     string
	size     int
	args     map[string]any
	runner   BatchRunner
	complete bool
}

func NewBatch(stateful *Stateful, name string, size int, args map[string]any, runner BatchRunner) *Batch {
	if size <= 0 {
		size = 1
	}
	if args == nil {
		args = map[string]any{}
	}
	return &Batch{Stateful: stateful, name: name, size: size, args: args, runner: runner}
}

func (b *Batch) Name() string         { return b.name }
func (b *Batch) Args() map[string]any { return b.args }
func (b *Batch) BatchSize() int       { return b.size }
func (b *Batch) IsComplete() bool     { return b.complete }

// Offset is the persisted start of the next page.
func (b *Batch) Offset(ctx context.Context) (int, error) {
	offset := 0
	if _, err := b.GetState(ctx, offsetKey, &offset); err != nil {
		return 0, err
	}
	return offset, nil
}

func (b *Batch) Run(ctx context.Context) error {
	offset, err := b.Offset(ctx)
	if err != nil {
		return err
	}
	more, err := b.runner.RunBatch(ctx, offset)
	if err != nil {
		return fmt.Errorf("%s batch at offset %d: %w", b.name, offset, err)
	}
	if !more {
		b.complete = true
		return nil
	}
	if err := b.SetState(ctx, offsetKey, offset+b.size); err != nil {
		return err
	}
	return b.Persist(ctx)
}
