package background

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yungbote/lms-progress/internal/data/repos/options"
)

const stateOptionPrefix = "sensei_background_job_state_"

func StateKey(id string) string { return stateOptionPrefix + id }

// Stateful keeps a small JSON state object in the options store between runs.
// State is loaded on first access and written back by Persist.
type Stateful struct {
	store options.Store
	id    string

	mu     sync.Mutex
	state  map[string]json.RawMessage
	loaded bool
	dirty  bool
}

func NewStateful(store options.Store, id string) *Stateful {
	return &Stateful{store: store, id: id}
}

func (s *Stateful) ID() string { return s.id }

func (s *Stateful) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	state := map[string]json.RawMessage{}
	if _, err := s.store.Get(ctx, StateKey(s.id), &state); err != nil {
		return err
	}
	if state == nil {
		state = map[string]json.RawMessage{}
	}
	s.state = state
	s.loaded = true
	return nil
}

// GetState decodes key into dst and reports whether it was set.
func (s *Stateful) GetState(ctx context.Context, key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return false, err
	}
	raw, ok := s.state[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode job state %s.%s: %w", s.id, key, err)
	}
	return true, nil
}

// SetState stages a value; Persist writes it.
func (s *Stateful) SetState(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode job state %s.%s: %w", s.id, key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}
	s.state[key] = raw
	s.dirty = true
	return nil
}

func (s *Stateful) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.store.Set(ctx, StateKey(s.id), s.state); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// End deletes the persisted state.
func (s *Stateful) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = map[string]json.RawMessage{}
	s.loaded = true
	s.dirty = false
	return s.store.Delete(ctx, StateKey(s.id))
}
