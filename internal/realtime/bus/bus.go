package bus

import (
	"context"
	"time"
)

// Event is a migration lifecycle notification.
type Event struct {
	Name  string         `json:"name"`
	Props map[string]any `json:"props,omitempty"`
	At    time.Time      `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	Close() error
}
