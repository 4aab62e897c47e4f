package sync

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/repository"
	"github.com/safenestapp/safenest/internal/store"
)

const writeTimeout = 10 * time.Second

// FlushResult reports the outcome of one queue drain
type FlushResult struct {
	Processed int
	Remaining int
}

// Handler applies one queued action during a flush
type Handler func(action model.QueueAction) error

// Engine is the single remote write path: writes go directly to the store
// while online and into the durable queue while offline, with an optimistic
// local apply so the device stays consistent immediately. The queue is
// drained at start and on every offline-to-online edge, never on a timer.
type Engine struct {
	store   store.RemoteStore
	queue   *repository.QueueRepository
	monitor *Monitor

	// Serializes flushes so an online edge racing a manual flush cannot
	// replay an action twice
	flushMu sync.Mutex

	mu         sync.Mutex
	onQueued   func(path string, payload []byte)
	unsubscribe func()
}

// NewEngine wires the write path and subscribes to connectivity edges
func NewEngine(rs store.RemoteStore, queue *repository.QueueRepository, monitor *Monitor) *Engine {
	e := &Engine{
		store:   rs,
		queue:   queue,
		monitor: monitor,
	}
	e.unsubscribe = monitor.OnChange(func(online bool) {
		if !online {
			return
		}
		if _, err := e.Flush(context.Background()); err != nil {
			log.Printf("[OfflineQueue] Flush after reconnect failed: %v", err)
		}
	})
	return e
}

// Close detaches the engine from the connectivity monitor
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// SetOptimisticApply registers the callback invoked when a write is queued
// instead of sent, so in-memory state can reflect it immediately
func (e *Engine) SetOptimisticApply(fn func(path string, payload []byte)) {
	e.mu.Lock()
	e.onQueued = fn
	e.mu.Unlock()
}

// Write stores value at path, or deletes the path when value is nil. While
// offline, or when the direct write fails transiently, the action is queued
// and the call still succeeds: a queued write is deferred, not failed.
func (e *Engine) Write(ctx context.Context, path string, value interface{}) error {
	if e.monitor.Online() {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		err := e.put(wctx, path, value)
		if err == nil {
			return nil
		}
		log.Printf("[OfflineQueue] Direct write failed, enqueueing %s: %v", path, err)
	} else {
		log.Printf("[OfflineQueue] Enqueue update: %s", path)
	}

	action, err := e.queue.Enqueue(path, value)
	if err != nil {
		// Local persistence failing is the only way a write can be lost;
		// surface it so the caller can warn the user
		return err
	}

	e.mu.Lock()
	onQueued := e.onQueued
	e.mu.Unlock()
	if onQueued != nil {
		onQueued(action.Path, action.Payload)
	}
	return nil
}

func (e *Engine) put(ctx context.Context, path string, value interface{}) error {
	if value == nil {
		return e.store.Delete(ctx, path)
	}
	return e.store.Put(ctx, path, value)
}

// Flush drains the queue against the remote store
func (e *Engine) Flush(ctx context.Context) (FlushResult, error) {
	return e.FlushWith(ctx, func(action model.QueueAction) error {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if action.Payload == nil {
			return e.store.Delete(wctx, action.Path)
		}
		return e.store.Put(wctx, action.Path, json.RawMessage(action.Payload))
	})
}

// FlushWith replays the queue in FIFO order through handler. Each action is
// removed immediately after its handler succeeds, so a crash mid-flush loses
// no applied work; the first failure stops the drain so no later action is
// applied ahead of an earlier one still pending.
func (e *Engine) FlushWith(ctx context.Context, handler Handler) (FlushResult, error) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	pending, err := e.queue.Pending()
	if err != nil {
		return FlushResult{}, err
	}
	if len(pending) == 0 {
		return FlushResult{}, nil
	}

	processed := 0
	for _, action := range pending {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := handler(action); err != nil {
			log.Printf("[OfflineQueue] Stopping flush at %s: %v", action.Path, err)
			break
		}
		if err := e.queue.Remove(action.ID); err != nil {
			return FlushResult{Processed: processed}, err
		}
		processed++
	}

	remaining, err := e.queue.Count()
	if err != nil {
		return FlushResult{Processed: processed}, err
	}
	if processed > 0 {
		log.Printf("[OfflineQueue] Flushed %d action(s), %d remaining", processed, remaining)
	}
	return FlushResult{Processed: processed, Remaining: int(remaining)}, nil
}
