package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by typed reads when no record exists at a path
var ErrNotFound = errors.New("store: not found")

// Snapshot is the raw JSON value of a path at a point in time. Decoding
// happens here, at the adapter boundary, so callers only ever see typed
// records.
type Snapshot []byte

// Decode unmarshals the snapshot into a typed destination
func (s Snapshot) Decode(dest interface{}) error {
	if len(s) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(s, dest)
}

// Exists reports whether the snapshot holds a value
func (s Snapshot) Exists() bool { return len(s) > 0 }

// WatchFunc receives change events for a watched path. A nil snapshot means
// the path was deleted. Callbacks may be invoked from the store's own
// goroutines; consumers must serialize their own state.
type WatchFunc func(path string, snap Snapshot)

// CancelFunc tears down a watch. Safe to call more than once.
type CancelFunc func()

// RemoteStore abstracts the realtime backend as a pub/sub key-value tree.
// Paths are slash-separated (see paths.go for the canonical layout).
type RemoteStore interface {
	// Put overwrites the value at path and notifies watchers
	Put(ctx context.Context, path string, value interface{}) error

	// Delete removes the value at path and notifies watchers
	Delete(ctx context.Context, path string) error

	// GetOnce reads the current value at path into dest. It returns false
	// with a nil error when nothing exists at the path.
	GetOnce(ctx context.Context, path string, dest interface{}) (bool, error)

	// List returns the direct children of prefix keyed by their last path
	// segment, e.g. List("households/H1/medicines") -> {medID: snapshot}
	List(ctx context.Context, prefix string) (map[string]Snapshot, error)

	// Watch subscribes fn to changes of path and all of its descendants.
	// Each registered watch delivers every matching event exactly once.
	Watch(path string, fn WatchFunc) CancelFunc
}
