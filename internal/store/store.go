// Package store holds the loaded outings dataset and the per-visitor filter
// selections that every page reads.
//
// A single Store is created by the application root and shared by every
// visitor. Each visitor gets a Session from Sessions holding its own category
// selection and search term. Derived values (filtered records, category
// lists) are recomputed from current state on each read, so nothing can go
// stale after a reload or a selection change.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/outings/internal/filter"
	"github.com/JonMunkholm/outings/internal/location"
	"github.com/JonMunkholm/outings/internal/logging"
)

// Status is the lifecycle of the dataset.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Loader fetches records for a sheet. *sheets.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, sheetID string) ([]location.Record, error)
}

// Recorder receives store gauges. *metrics.Collector satisfies it.
type Recorder interface {
	SetLocations(n int)
}

// Store holds the shared dataset. Filter state lives in Session.
// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	records    []location.Record
	categories []string
	status     Status
	lastErr    error
	loadID     string
	loadedAt   time.Time
	version    uint64

	loadMu   sync.Mutex
	inflight *loadCall

	events hub

	recorder Recorder
}

type loadCall struct {
	done    chan struct{}
	err     error
	waiters int // callers sharing this load besides the one fetching
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// New returns an empty store in StatusIdle.
func New(opts ...Option) *Store {
	s := &Store{status: StatusIdle}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the dataset through loader and installs it. Concurrent calls
// share one fetch: later callers wait for the in-flight load and receive its
// result. On failure the previous records are kept and the error is recorded.
func (s *Store) Load(ctx context.Context, loader Loader, sheetID string) error {
	s.loadMu.Lock()
	if c := s.inflight; c != nil {
		c.waiters++
		s.loadMu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &loadCall{done: make(chan struct{})}
	s.inflight = c
	s.loadMu.Unlock()

	s.mu.Lock()
	s.status = StatusLoading
	s.mu.Unlock()

	log := logging.FromContext(ctx)
	records, err := loader.Load(ctx, sheetID)
	if err != nil {
		s.failLoad(err)
		log.Error("dataset load failed", "sheet_id", sheetID, "error", err)
	} else {
		s.applyLoad(records)
	}

	c.err = err
	s.loadMu.Lock()
	s.inflight = nil
	waiters := c.waiters
	s.loadMu.Unlock()
	close(c.done)

	if waiters > 0 {
		log.Debug("load shared", "sheet_id", sheetID, "waiters", waiters)
	}
	return err
}

// applyLoad installs a freshly loaded dataset.
func (s *Store) applyLoad(records []location.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.categories = filter.Categories(records)
	s.status = StatusReady
	s.lastErr = nil
	s.loadID = uuid.NewString()
	s.loadedAt = time.Now()
	s.version++

	if s.recorder != nil {
		s.recorder.SetLocations(len(records))
	}
	s.events.publish(Event{Kind: EventLoaded, Version: s.version, LoadID: s.loadID})
}

func (s *Store) failLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.lastErr = err
	s.version++
	s.events.publish(Event{Kind: EventLoadFailed, Version: s.version, LoadID: s.loadID})
}
