package sync

import (
	"log"
	"sync"
)

// Monitor tracks device connectivity. The platform shell feeds it transitions
// through SetOnline; core components subscribe instead of running their own
// ad hoc online checks.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int64]func(online bool)
	nextID int64
}

// NewMonitor starts in the given connectivity state
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int64]func(bool)),
	}
}

// Online reports the last known connectivity state
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a connectivity change. Subscribers are notified only on
// actual edges, not on repeated reports of the same state.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if online {
		log.Println("[Network] Back online")
	} else {
		log.Println("[Network] Went offline")
	}
	for _, fn := range subs {
		fn(online)
	}
}

// OnChange subscribes fn to connectivity edges and returns an unsubscribe
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
