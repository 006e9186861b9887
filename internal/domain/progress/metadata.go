package progress

import (
	"sort"
	"sync"
	"time"
)

// Loader produces the metadata bag of a comments-based record on first use.
type Loader func() (map[string]string, error)

// Metadata is a lazily loaded key/value bag. The loader runs at most once;
// values written with Set overlay whatever the loader returns.
type Metadata struct {
	once    sync.Once
	loader  Loader
	mu      sync.RWMutex
	loaded  map[string]string
	overlay map[string]string
	err     error
}

// NewMetadata returns a bag that is already materialized.
func NewMetadata(values map[string]string) *Metadata {
	m := &Metadata{}
	m.once.Do(func() {
		m.loaded = copyMap(values)
	})
	return m
}

// NewLazyMetadata defers loading until the first read.
func NewLazyMetadata(loader Loader) *Metadata {
	return &Metadata{loader: loader}
}

func (m *Metadata) load() {
	m.once.Do(func() {
		if m.loader == nil {
			m.mu.Lock()
			m.loaded = map[string]string{}
			m.mu.Unlock()
			return
		}
		vals, err := m.loader()
		m.mu.Lock()
		m.loaded = copyMap(vals)
		m.err = err
		m.mu.Unlock()
	})
}

// Loaded reports whether the loader has been evaluated.
func (m *Metadata) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded != nil
}

func (m *Metadata) Get(key string) (string, bool) {
	m.load()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.overlay[key]; ok {
		return v, true
	}
	v, ok := m.loaded[key]
	return v, ok
}

func (m *Metadata) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlay == nil {
		m.overlay = map[string]string{}
	}
	m.overlay[key] = value
}

// All returns the merged bag, or the loader's error.
func (m *Metadata) All() (map[string]string, error) {
	m.load()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := copyMap(m.loaded)
	for k, v := range m.overlay {
		out[k] = v
	}
	return out, nil
}

// Keys is sorted for stable writes.
func (m *Metadata) Keys() []string {
	all, err := m.All()
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CommentView exposes a comments-based record under the legacy comment field names.
type CommentView struct {
	p interface {
		ID() int64
		SubjectID() int64
		UserID() int64
		Status() Status
		UpdatedAt() time.Time
	}
	postID int64
}

func (v CommentView) CommentID() int64 { return v.p.ID() }

// CommentPostID is the post that owns the comment. Quiz progress is stored on its lesson.
func (v CommentView) CommentPostID() int64 {
	if v.postID != 0 {
		return v.postID
	}
	return v.p.SubjectID()
}

func (v CommentView) UserID() int64           { return v.p.UserID() }
func (v CommentView) CommentApproved() string { return string(v.p.Status()) }
func (v CommentView) CommentDate() time.Time  { return v.p.UpdatedAt() }
