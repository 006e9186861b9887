package options

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	vals map[string][]byte
}

// NewMemoryStore keeps options in process memory.
func NewMemoryStore() Store {
	return &memoryStore{vals: map[string][]byte{}}
}

func (s *memoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.vals[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, decode(key, raw, dst)
}

func (s *memoryStore) Set(_ context.Context, key string, value any) error {
	raw, err := encode(key, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.vals[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.vals, key)
	s.mu.Unlock()
	return nil
}
