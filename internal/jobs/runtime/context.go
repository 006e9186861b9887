package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/lms-progress/internal/domain/jobs"
)

/*
Context is the execution handle passed to a hook handler for one scheduled action.
It carries:
	- Ctx: cancellation and deadlines for this run
	- Action: the claimed scheduled_action row
	- args: the decoded argument object
Handlers never touch the scheduled_action row directly; status transitions belong
to the queue that dispatched them.
*/
type Context struct {
	Ctx    context.Context
	Action *jobs.ScheduledAction
	args   map[string]any
}

// NewContext decodes the action arguments eagerly. A malformed argument object
// leaves Args empty; handlers validate what they need.
func NewContext(ctx context.Context, action *jobs.ScheduledAction) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{Ctx: ctx, Action: action}
	_ = c.decodeArgs()
	return c
}

func (c *Context) decodeArgs() error {
	if c.Action == nil || len(c.Action.Args) == 0 {
		c.args = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Action.Args, &m); err != nil {
		c.args = map[string]any{}
		return err
	}
	if m == nil {
		m = map[string]any{}
	}
	c.args = m
	return nil
}

// Args never returns nil.
func (c *Context) Args() map[string]any {
	if c.args == nil {
		c.args = map[string]any{}
	}
	return c.args
}

// String returns the argument under key as a string, or "" when absent.
func (c *Context) String(key string) string {
	v, ok := c.Args()[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Decode unmarshals the raw argument object into dst.
func (c *Context) Decode(dst any) error {
	if c.Action == nil || len(c.Action.Args) == 0 {
		return nil
	}
	return json.Unmarshal(c.Action.Args, dst)
}

func (c *Context) ActionID() uuid.UUID {
	if c.Action == nil {
		return uuid.Nil
	}
	return c.Action.ID
}
