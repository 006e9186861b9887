// Package migration moves legacy comment-based progress into the progress
// tables in resumable batches and chains those batches as scheduled actions.
package migration

import (
	"context"
	"sync"

	"github.com/yungbote/lms-progress/internal/data/repos/options"
)

// Migration moves at most one batch per Run. A Run that returns 0 means there is
// nothing left to migrate.
type Migration interface {
	Name() string
	TargetVersion() string
	Run(ctx context.Context, dryRun bool) (int, error)
	// Errors are the deduplicated per-row problems collected by this instance.
	Errors() []string
	// ClearState forgets the resumption cursor.
	ClearState(ctx context.Context) error
}

// Base carries the cursor and error bookkeeping shared by migrations.
type Base struct {
	name      string
	version   string
	cursorKey string
	opts      options.Store

	mu     sync.Mutex
	errors []string
}

func NewBase(name, version, cursorKey string, opts options.Store) *Base {
	return &Base{name: name, version: version, cursorKey: cursorKey, opts: opts}
}

func (b *Base) Name() string          { return b.name }
func (b *Base) TargetVersion() string { return b.version }

// AddError records msg once.
func (b *Base) AddError(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.errors {
		if e == msg {
			return
		}
	}
	b.errors = append(b.errors, msg)
}

func (b *Base) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errors...)
}

// Cursor is the last processed legacy id, 0 before the first batch.
func (b *Base) Cursor(ctx context.Context) (int64, error) {
	var id int64
	if _, err := b.opts.Get(ctx, b.cursorKey, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (b *Base) SetCursor(ctx context.Context, id int64) error {
	return b.opts.Set(ctx, b.cursorKey, id)
}

func (b *Base) ClearState(ctx context.Context) error {
	b.mu.Lock()
	b.errors = nil
	b.mu.Unlock()
	return b.opts.Delete(ctx, b.cursorKey)
}
