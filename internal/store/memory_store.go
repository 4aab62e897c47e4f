package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process RemoteStore. It backs tests and the
// first-run demo mode where no backend is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]Snapshot
	watchers map[int64]*watcher
	nextID   int64
}

// NewMemoryStore returns an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]Snapshot),
		watchers: make(map[int64]*watcher),
	}
}

// Put overwrites the value at path and notifies watchers synchronously
func (s *MemoryStore) Put(_ context.Context, path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[path] = Snapshot(data)
	matched := s.matching(path)
	s.mu.Unlock()

	for _, w := range matched {
		w.fn(path, Snapshot(data))
	}
	return nil
}

// Delete removes the value at path and notifies watchers
func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.data, path)
	matched := s.matching(path)
	s.mu.Unlock()

	for _, w := range matched {
		w.fn(path, nil)
	}
	return nil
}

// GetOnce reads the current value at path
func (s *MemoryStore) GetOnce(_ context.Context, path string, dest interface{}) (bool, error) {
	s.mu.RLock()
	snap, ok := s.data[path]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, snap.Decode(dest)
}

// List returns the direct children of prefix
func (s *MemoryStore) List(_ context.Context, prefix string) (map[string]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Snapshot)
	for path, snap := range s.data {
		if seg := ChildSegment(prefix, path); seg != "" {
			out[seg] = snap
		}
	}
	return out, nil
}

// Watch registers fn for changes to path and its descendants
func (s *MemoryStore) Watch(path string, fn WatchFunc) CancelFunc {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = &watcher{path: path, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// matching must be called with the lock held
func (s *MemoryStore) matching(path string) []*watcher {
	matched := make([]*watcher, 0, 4)
	for _, w := range s.watchers {
		if pathMatches(w.path, path) {
			matched = append(matched, w)
		}
	}
	return matched
}
