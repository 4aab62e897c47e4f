package store

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "safenest:data:"
	changeChannel = "safenest:changes"
)

// changeEvent is the wire format published for every write
type changeEvent struct {
	Path    string          `json:"path"`
	Value   json.RawMessage `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// RedisStore implements RemoteStore on Redis: values live in plain keys and
// change notifications fan out over a single Pub/Sub channel shared by all
// devices, so every subscribed client sees every write.
type RedisStore struct {
	rdb *redis.Client

	mu       sync.RWMutex
	watchers map[int64]*watcher
	nextID   int64

	cancel context.CancelFunc
}

type watcher struct {
	path string
	fn   WatchFunc
}

// NewRedisStore connects the adapter and starts its Pub/Sub dispatcher
func NewRedisStore(ctx context.Context, rdb *redis.Client) (*RedisStore, error) {
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &RedisStore{
		rdb:      rdb,
		watchers: make(map[int64]*watcher),
		cancel:   cancel,
	}

	pubsub := rdb.Subscribe(runCtx, changeChannel)
	// Confirm the subscription before any Put can race past it
	if _, err := pubsub.Receive(runCtx); err != nil {
		cancel()
		return nil, err
	}
	go s.dispatch(runCtx, pubsub)

	log.Println("✅ Remote store connected (redis)")
	return s, nil
}

// Close stops the dispatcher. The underlying redis client is owned by the
// caller and stays open.
func (s *RedisStore) Close() { s.cancel() }

// Put overwrites the value at path and publishes the change
func (s *RedisStore) Put(ctx context.Context, path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyPrefix+path, data, 0).Err(); err != nil {
		return err
	}
	return s.publish(ctx, changeEvent{Path: path, Value: data})
}

// Delete removes the value at path and publishes the deletion
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := s.rdb.Del(ctx, keyPrefix+path).Err(); err != nil {
		return err
	}
	return s.publish(ctx, changeEvent{Path: path, Deleted: true})
}

// GetOnce reads the current value at path
func (s *RedisStore) GetOnce(ctx context.Context, path string, dest interface{}) (bool, error) {
	val, err := s.rdb.Get(ctx, keyPrefix+path).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// List scans the direct children of prefix
func (s *RedisStore) List(ctx context.Context, prefix string) (map[string]Snapshot, error) {
	out := make(map[string]Snapshot)
	iter := s.rdb.Scan(ctx, 0, keyPrefix+prefix+"/*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		path := strings.TrimPrefix(key, keyPrefix)
		seg := ChildSegment(prefix, path)
		if seg == "" {
			continue
		}
		val, err := s.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // deleted between scan and read
		}
		if err != nil {
			return nil, err
		}
		out[seg] = Snapshot(val)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch registers fn for changes to path and its descendants
func (s *RedisStore) Watch(path string, fn WatchFunc) CancelFunc {
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

func (s *RedisStore) publish(ctx context.Context, ev changeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, changeChannel, data).Err()
}

// dispatch delivers change events to matching local watchers
func (s *RedisStore) dispatch(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[Store] Bad change event: %v", err)
				continue
			}
			s.deliver(ev)
		}
	}
}

func (s *RedisStore) deliver(ev changeEvent) {
	var snap Snapshot
	if !ev.Deleted {
		snap = Snapshot(ev.Value)
	}

	s.mu.RLock()
	matched := make([]*watcher, 0, 4)
	for _, w := range s.watchers {
		if pathMatches(w.path, ev.Path) {
			matched = append(matched, w)
		}
	}
	s.mu.RUnlock()

	for _, w := range matched {
		w.fn(ev.Path, snap)
	}
}

// pathMatches reports whether changed equals watched or lies below it
func pathMatches(watched, changed string) bool {
	return changed == watched || strings.HasPrefix(changed, watched+"/")
}
