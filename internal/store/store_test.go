package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/outings/internal/location"
	"github.com/JonMunkholm/outings/internal/logging"
)

type stubLoader struct {
	calls   atomic.Int32
	release chan struct{}
	records []location.Record
	err     error
}

func (l *stubLoader) Load(ctx context.Context, sheetID string) ([]location.Record, error) {
	l.calls.Add(1)
	if l.release != nil {
		select {
		case <-l.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.records, l.err
}

type stubRecorder struct {
	mu                 sync.Mutex
	locations, session int
}

func (r *stubRecorder) SetLocations(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = n
}

func (r *stubRecorder) SetActiveSessions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = n
}

func (r *stubRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locations, r.session
}

func loadedStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Load(context.Background(), &stubLoader{records: testRecords()}, "sheet"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func testRecords() []location.Record {
	return []location.Record{
		{ID: "1", Name: "Big Basin", Latitude: 37.17, Longitude: -122.22, Category: "Camping", Subcategory: "Car camping"},
		{ID: "2", Name: "Castle Rock", Latitude: 37.23, Longitude: -122.10, Category: "Climbing"},
		{ID: "3", Name: "Henry Coe", Latitude: 37.19, Longitude: -121.55, Category: "Backpacking", Subcategory: "Overnight"},
		{ID: "4", Name: "Sanborn", Latitude: 37.23, Longitude: -122.06, Category: "Camping", Subcategory: "Walk-in"},
	}
}

func TestNewStoreIsIdleAndEmpty(t *testing.T) {
	s := New()
	status, err := s.Status()
	if status != StatusIdle || err != nil {
		t.Errorf("Status = %v, %v; want idle, nil", status, err)
	}
	if len(s.Records()) != 0 || len(s.AllCategories()) != 0 || s.Snapshot().Selected.Len() != 0 {
		t.Error("new store is not empty")
	}
	if !s.Snapshot().Loading() {
		t.Error("idle snapshot should report Loading")
	}
}

func TestLoadInstallsDataset(t *testing.T) {
	rec := &stubRecorder{}
	s := New(WithRecorder(rec))
	loader := &stubLoader{records: testRecords()}

	if err := s.Load(context.Background(), loader, "sheet"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := s.AllCategories(), []string{"Camping", "Climbing", "Backpacking"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AllCategories = %v, want %v", got, want)
	}

	snap := s.Snapshot()
	if snap.Status != StatusReady || snap.LoadID == "" || snap.LoadedAt.IsZero() {
		t.Errorf("snapshot after load = %+v", snap)
	}
	if snap.Selected.Len() != 0 {
		t.Errorf("store snapshot selected %v, want none", snap.Selected.Sorted())
	}
	if locations, _ := rec.counts(); locations != 4 {
		t.Errorf("recorder locations = %d, want 4", locations)
	}
}

func TestLoadFailureKeepsRecords(t *testing.T) {
	s := New()
	if err := s.Load(context.Background(), &stubLoader{records: testRecords()}, "sheet"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	firstID := s.Snapshot().LoadID

	boom := errors.New("boom")
	if err := s.Load(context.Background(), &stubLoader{err: boom}, "sheet"); !errors.Is(err, boom) {
		t.Fatalf("Load err = %v, want boom", err)
	}

	status, err := s.Status()
	if status != StatusFailed || !errors.Is(err, boom) {
		t.Errorf("Status = %v, %v; want failed, boom", status, err)
	}
	if len(s.Records()) != 4 {
		t.Errorf("records after failed reload = %d, want 4", len(s.Records()))
	}
	if s.Snapshot().LoadID != firstID {
		t.Error("failed load changed LoadID")
	}
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&logs, "debug", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	s := New()
	loader := &stubLoader{records: testRecords(), release: make(chan struct{})}

	const callers = 5
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			errs <- s.Load(context.Background(), loader, "sheet")
		}()
	}

	deadline := time.After(2 * time.Second)
	for !allWaiting(s, loader, callers-1) {
		select {
		case <-deadline:
			t.Fatal("callers never converged on one load")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if status, _ := s.Status(); status != StatusLoading {
		t.Errorf("status during load = %v, want loading", status)
	}
	close(loader.release)

	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Load: %v", err)
		}
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
	if out := logs.String(); !strings.Contains(out, "load shared") || !strings.Contains(out, "waiters=4") {
		t.Errorf("log = %q, want load shared with waiters=4", out)
	}
}

func allWaiting(s *Store, loader *stubLoader, waiters int) bool {
	if loader.calls.Load() == 0 {
		return false
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.inflight != nil && s.inflight.waiters == waiters
}

func TestSubcategories(t *testing.T) {
	s := loadedStore(t)

	if got, want := s.Subcategories(), []string{"Car camping", "Overnight", "Walk-in"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Subcategories = %v, want %v", got, want)
	}
	if got, want := s.SubcategoriesOf("Camping"), []string{"Car camping", "Walk-in"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SubcategoriesOf(Camping) = %v, want %v", got, want)
	}
}

func TestSubscribeReceivesLoadEvents(t *testing.T) {
	s := New()
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	if err := s.Load(context.Background(), &stubLoader{records: testRecords()}, "sheet"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = s.Load(context.Background(), &stubLoader{err: errors.New("boom")}, "sheet")

	want := []EventKind{EventLoaded, EventLoadFailed}
	var lastVersion uint64
	for _, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind {
				t.Errorf("event kind = %v, want %v", ev.Kind, kind)
			}
			if ev.Version <= lastVersion {
				t.Errorf("event version %d not increasing after %d", ev.Version, lastVersion)
			}
			lastVersion = ev.Version
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %v", kind)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := New()
	events, unsubscribe := s.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-events; ok {
		t.Error("channel still open after unsubscribe")
	}
	_ = s.Load(context.Background(), &stubLoader{records: testRecords()}, "sheet")
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s := New()
	events, unsubscribe := s.Subscribe()
	s.Close()
	unsubscribe()

	if _, ok := <-events; ok {
		t.Error("channel still open after Close")
	}
	late, _ := s.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription after Close is open")
	}
}

func TestRefreshSchedulerLoadsOnceWithoutInterval(t *testing.T) {
	s := New()
	loader := &stubLoader{records: testRecords()}

	s.StartRefreshScheduler(context.Background(), loader, "sheet", 0)

	if loader.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", loader.calls.Load())
	}
	if status, _ := s.Status(); status != StatusReady {
		t.Errorf("status = %s, want ready", status)
	}
}

func TestRefreshSchedulerReloadsUntilCancelled(t *testing.T) {
	s := New()
	loader := &stubLoader{records: testRecords()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.StartRefreshScheduler(ctx, loader, "sheet", 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for loader.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if loader.calls.Load() < 3 {
		t.Errorf("calls = %d, want at least 3", loader.calls.Load())
	}
}
