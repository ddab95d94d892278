package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/outings/internal/filter"
	"github.com/JonMunkholm/outings/internal/location"
)

// Session is one visitor's filter state over the shared dataset: the
// selected categories and the search term. Sessions never see each other's
// changes.
//
// The first time a session observes a loaded dataset with nothing selected,
// it selects every category. After that the selection is only changed by
// the visitor.
type Session struct {
	ID string

	store *Store

	mu          sync.Mutex
	selected    filter.Set
	searchTerm  string
	initialized bool
	version     uint64

	events   hub
	lastSeen atomic.Int64 // unix nanoseconds
}

func newSession(id string, st *Store, now time.Time) *Session {
	sess := &Session{ID: id, store: st, selected: filter.NewSet()}
	sess.lastSeen.Store(now.UnixNano())
	return sess
}

// adopt runs the first-load select-all. Caller holds s.mu.
func (s *Session) adopt(ds Snapshot) {
	if s.initialized || ds.LoadID == "" {
		return
	}
	if s.selected.Len() == 0 {
		s.selected = filter.NewSet(ds.Categories...)
	}
	s.initialized = true
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// Snapshot captures the dataset together with this session's filters.
func (s *Session) Snapshot() Snapshot {
	snap := s.store.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adopt(snap)
	s.touch()
	snap.Selected = s.selected.Clone()
	snap.SearchTerm = s.searchTerm
	return snap
}

// SelectedCategories returns a copy of the selection.
func (s *Session) SelectedCategories() filter.Set {
	return s.Snapshot().Selected
}

func (s *Session) SearchTerm() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchTerm
}

// FilteredData returns the records whose category is selected.
func (s *Session) FilteredData() []location.Record {
	return s.Snapshot().Filtered()
}

// ToggleCategory flips one category's selection and reports whether it is
// selected afterwards.
func (s *Session) ToggleCategory(category string) bool {
	var on bool
	s.mutateSelection(func([]string) { on = s.selected.Toggle(category) })
	return on
}

// SelectAll selects every category present in the dataset.
func (s *Session) SelectAll() {
	s.mutateSelection(func(categories []string) { s.selected = filter.NewSet(categories...) })
}

// ClearAll deselects every category.
func (s *Session) ClearAll() {
	s.mutateSelection(func([]string) { s.selected = filter.NewSet() })
}

// SetSelectedCategories replaces the selection.
func (s *Session) SetSelectedCategories(categories ...string) {
	s.mutateSelection(func([]string) { s.selected = filter.NewSet(categories...) })
}

func (s *Session) mutateSelection(fn func(categories []string)) {
	ds := s.store.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adopt(ds)
	s.touch()
	fn(ds.Categories)
	s.version++
	s.events.publish(Event{Kind: EventSelection, Version: s.version, LoadID: ds.LoadID})
}

// SetSearchTerm stores the search text as given. Filtering trims and folds
// case at read time. Setting the current term again is not a change.
func (s *Session) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.searchTerm == term {
		return
	}
	s.searchTerm = term
	s.version++
	s.events.publish(Event{Kind: EventSearch, Version: s.version})
}

// Subscribe registers for this session's selection and search events. See
// Store.Subscribe for delivery rules.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.touch()
	return s.events.subscribe()
}

// SessionRecorder receives the live session count. *metrics.Collector
// satisfies it.
type SessionRecorder interface {
	SetActiveSessions(n int)
}

// Sessions creates and expires visitor sessions. A session with no request
// and no open subscription for longer than the idle timeout is dropped and
// its subscribers closed.
type Sessions struct {
	store    *Store
	idle     time.Duration
	recorder SessionRecorder

	mu       sync.Mutex
	sessions map[string]*Session

	done     chan struct{}
	stopOnce sync.Once
}

// NewSessions returns a session registry over st. A positive idle timeout
// starts a background sweep; stop it with Close.
func NewSessions(st *Store, idle time.Duration, recorder SessionRecorder) *Sessions {
	m := &Sessions{
		store:    st,
		idle:     idle,
		recorder: recorder,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	if idle > 0 {
		go m.cleanup()
	}
	return m
}

// Get returns the live session with id.
func (m *Sessions) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if ok {
		sess.touch()
	}
	return sess, ok
}

// Create starts a session with a fresh random id.
func (m *Sessions) Create() *Session {
	sess := newSession(uuid.NewString(), m.store, time.Now())

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	n := len(m.sessions)
	m.mu.Unlock()

	m.record(n)
	return sess
}

// Len returns the number of live sessions.
func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the sweep and ends every session's subscriptions.
func (m *Sessions) Close() {
	m.stopOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		sess.events.close()
		delete(m.sessions, id)
	}
	m.record(0)
}

func (m *Sessions) cleanup() {
	interval := m.idle
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.expire(now)
		}
	}
}

// expire drops sessions idle since before now minus the idle timeout.
func (m *Sessions) expire(now time.Time) {
	cutoff := now.Add(-m.idle).UnixNano()

	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess.lastSeen.Load() >= cutoff || sess.events.len() > 0 {
			continue
		}
		sess.events.close()
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	m.record(n)
}

func (m *Sessions) record(n int) {
	if m.recorder != nil {
		m.recorder.SetActiveSessions(n)
	}
}
