package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the gateway
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the gateway
	pongWait = 60 * time.Second

	// Ping period, must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 * 1024

	requestTimeout = 15 * time.Second
)

// wsFrame is the JSON frame exchanged with the sync gateway
type wsFrame struct {
	Op      string                     `json:"op"` // put, delete, get, list, result, event
	Seq     int64                      `json:"seq,omitempty"`
	Path    string                     `json:"path,omitempty"`
	Value   json.RawMessage            `json:"value,omitempty"`
	Items   map[string]json.RawMessage `json:"items,omitempty"`
	Deleted bool                       `json:"deleted,omitempty"`
	Found   bool                       `json:"found,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// WSStore implements RemoteStore over a persistent WebSocket to a sync
// gateway. Reads and writes are request/response frames matched by sequence
// number; the gateway pushes every data change as an unsolicited event frame
// which is fanned out to local watchers.
type WSStore struct {
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	pending  map[int64]chan wsFrame
	nextSeq  int64
	watchers map[int64]*watcher
	nextID   int64
	closed   bool

	done chan struct{}
}

// DialWSStore connects to the sync gateway and starts the read/write pumps
func DialWSStore(ctx context.Context, url, token string) (*WSStore, error) {
	header := map[string][]string{}
	if token != "" {
		header["Authorization"] = []string{"Bearer " + token}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial sync gateway: %w", err)
	}

	s := &WSStore{
		conn:     conn,
		send:     make(chan []byte, 256),
		pending:  make(map[int64]chan wsFrame),
		watchers: make(map[int64]*watcher),
		done:     make(chan struct{}),
	}
	go s.readPump()
	go s.writePump()

	log.Println("✅ Remote store connected (websocket)")
	return s, nil
}

// Close tears down the connection and fails all pending requests
func (s *WSStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
	return s.conn.Close()
}

// Put overwrites the value at path
func (s *WSStore) Put(ctx context.Context, path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.request(ctx, wsFrame{Op: "put", Path: path, Value: data})
	return err
}

// Delete removes the value at path
func (s *WSStore) Delete(ctx context.Context, path string) error {
	_, err := s.request(ctx, wsFrame{Op: "delete", Path: path})
	return err
}

// GetOnce reads the current value at path
func (s *WSStore) GetOnce(ctx context.Context, path string, dest interface{}) (bool, error) {
	resp, err := s.request(ctx, wsFrame{Op: "get", Path: path})
	if err != nil {
		return false, err
	}
	if !resp.Found {
		return false, nil
	}
	if err := json.Unmarshal(resp.Value, dest); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the direct children of prefix
func (s *WSStore) List(ctx context.Context, prefix string) (map[string]Snapshot, error) {
	resp, err := s.request(ctx, wsFrame{Op: "list", Path: prefix})
	if err != nil {
		return nil, err
	}
	out := make(map[string]Snapshot, len(resp.Items))
	for seg, raw := range resp.Items {
		out[seg] = Snapshot(raw)
	}
	return out, nil
}

// Watch registers fn for changes to path and its descendants
func (s *WSStore) Watch(path string, fn WatchFunc) CancelFunc {
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

// request sends a frame and waits for the matching result. Every request is
// bounded: the call fails when the context ends, the connection drops, or
// the gateway does not answer within requestTimeout.
func (s *WSStore) request(ctx context.Context, frame wsFrame) (wsFrame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return wsFrame{}, errors.New("store: connection closed")
	}
	s.nextSeq++
	frame.Seq = s.nextSeq
	reply := make(chan wsFrame, 1)
	s.pending[frame.Seq] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, frame.Seq)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(frame)
	if err != nil {
		return wsFrame{}, err
	}
	select {
	case s.send <- data:
	case <-ctx.Done():
		return wsFrame{}, ctx.Err()
	case <-s.done:
		return wsFrame{}, errors.New("store: connection closed")
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case resp := <-reply:
		if resp.Error != "" {
			return wsFrame{}, fmt.Errorf("store: %s", resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return wsFrame{}, ctx.Err()
	case <-timer.C:
		return wsFrame{}, errors.New("store: request timed out")
	case <-s.done:
		return wsFrame{}, errors.New("store: connection closed")
	}
}

// readPump pumps frames from the gateway: results resolve pending requests,
// events fan out to watchers.
func (s *WSStore) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Store] WebSocket error: %v", err)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Printf("[Store] Bad frame: %v", err)
			continue
		}

		switch frame.Op {
		case "result":
			s.mu.Lock()
			reply, ok := s.pending[frame.Seq]
			s.mu.Unlock()
			if ok {
				reply <- frame
			}
		case "event":
			s.deliver(frame)
		}
	}
}

func (s *WSStore) deliver(frame wsFrame) {
	var snap Snapshot
	if !frame.Deleted {
		snap = Snapshot(frame.Value)
	}

	s.mu.Lock()
	matched := make([]*watcher, 0, 4)
	for _, w := range s.watchers {
		if pathMatches(w.path, frame.Path) {
			matched = append(matched, w)
		}
	}
	s.mu.Unlock()

	for _, w := range matched {
		w.fn(frame.Path, snap)
	}
}

// writePump pumps queued frames to the gateway and keeps the connection
// alive with pings
func (s *WSStore) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
