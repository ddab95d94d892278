package store

import (
	"sync"

	"github.com/google/uuid"
)

// EventKind names what changed.
type EventKind string

const (
	EventLoaded     EventKind = "loaded"
	EventLoadFailed EventKind = "load_failed"
	EventSelection  EventKind = "selection"
	EventSearch     EventKind = "search"
)

// Event is delivered to subscribers after every state change. Version grows
// by one per change of the source that emitted it: the Store for load
// events, the Session for selection and search events.
type Event struct {
	Kind    EventKind `json:"kind"`
	Version uint64    `json:"version"`
	LoadID  string    `json:"loadId,omitempty"`
}

// subscriberBuffer is how many undelivered events a subscriber may hold
// before further events are dropped for it.
const subscriberBuffer = 16

// hub fans events out to subscribers. The zero value is ready to use.
//
// Publishers call publish while holding the lock that guards the state the
// event describes, so subscribers see versions in the order they were
// assigned.
type hub struct {
	mu        sync.Mutex
	listeners map[string]chan Event
	closed    bool
}

func (h *hub) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	id := uuid.NewString()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.listeners == nil {
		h.listeners = make(map[string]chan Event)
	}
	h.listeners[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.listeners[id]; ok {
				delete(h.listeners, id)
				close(c)
			}
		})
	}
}

// publish never blocks: a full subscriber misses the event.
func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.listeners {
		close(ch)
		delete(h.listeners, id)
	}
	h.closed = true
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Subscribe registers for dataset events (loaded, load_failed). The returned
// function unsubscribes and closes the channel; calling it more than once is
// safe. A subscriber that falls behind misses events rather than blocking
// the store.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// Close ends every dataset subscription. Later subscribers receive a closed
// channel.
func (s *Store) Close() {
	s.events.close()
}
