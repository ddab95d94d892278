package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestSessionSelectsAllOnFirstLoad(t *testing.T) {
	st := loadedStore(t)
	sess := NewSessions(st, 0, nil).Create()

	if got, want := sess.SelectedCategories().Sorted(), []string{"Backpacking", "Camping", "Climbing"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SelectedCategories = %v, want %v", got, want)
	}
	if got := len(sess.FilteredData()); got != 4 {
		t.Errorf("FilteredData len = %d, want 4", got)
	}
}

func TestSessionCreatedBeforeLoadSelectsAllAfterIt(t *testing.T) {
	st := New()
	sess := NewSessions(st, 0, nil).Create()

	if n := sess.SelectedCategories().Len(); n != 0 {
		t.Fatalf("selection before load = %d, want 0", n)
	}
	_ = st.Load(context.Background(), &stubLoader{err: errors.New("boom")}, "sheet")
	if n := sess.SelectedCategories().Len(); n != 0 {
		t.Errorf("failed load selected %d categories", n)
	}

	if err := st.Load(context.Background(), &stubLoader{records: testRecords()}, "sheet"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := sess.SelectedCategories().Len(); n != 3 {
		t.Errorf("first successful load selected %d categories, want 3", n)
	}
}

func TestSessionAutoSelectHappensOnlyOnce(t *testing.T) {
	st := loadedStore(t)
	sess := NewSessions(st, 0, nil).Create()

	sess.ClearAll()
	if err := st.Load(context.Background(), &stubLoader{records: testRecords()}, "sheet"); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if n := sess.SelectedCategories().Len(); n != 0 {
		t.Errorf("selection after reload = %d categories, want 0", n)
	}
}

func TestSessionSelectionMutators(t *testing.T) {
	sess := NewSessions(loadedStore(t), 0, nil).Create()

	if sess.ToggleCategory("Camping") {
		t.Error("ToggleCategory(Camping) = true, want false after auto-select")
	}
	if got := len(sess.FilteredData()); got != 2 {
		t.Errorf("FilteredData after toggle off = %d, want 2", got)
	}

	sess.ClearAll()
	if got := len(sess.FilteredData()); got != 0 {
		t.Errorf("FilteredData after ClearAll = %d, want 0", got)
	}

	sess.SetSelectedCategories("Climbing")
	if got := sess.SelectedCategories().Sorted(); !reflect.DeepEqual(got, []string{"Climbing"}) {
		t.Errorf("selection = %v", got)
	}

	sess.SelectAll()
	if got := sess.SelectedCategories().Len(); got != 3 {
		t.Errorf("SelectAll selected %d, want 3", got)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m := NewSessions(loadedStore(t), 0, nil)
	a, b := m.Create(), m.Create()

	a.ClearAll()
	a.SetSearchTerm("basin")

	if n := b.SelectedCategories().Len(); n != 3 {
		t.Errorf("other session selection = %d, want 3", n)
	}
	if b.SearchTerm() != "" {
		t.Errorf("other session search = %q, want empty", b.SearchTerm())
	}
	if a.ID == b.ID {
		t.Error("sessions share an id")
	}
}

func TestSessionSelectedCategoriesIsACopy(t *testing.T) {
	sess := NewSessions(New(), 0, nil).Create()
	sess.SetSelectedCategories("Camping")
	sel := sess.SelectedCategories()
	sel.Add("Climbing")
	if sess.SelectedCategories().Has("Climbing") {
		t.Error("mutating returned set changed the session")
	}
}

func TestSessionSubscribeReceivesEvents(t *testing.T) {
	sess := NewSessions(loadedStore(t), 0, nil).Create()
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	sess.ToggleCategory("Camping")
	sess.SetSearchTerm("rock")
	sess.SetSearchTerm("rock")

	want := []EventKind{EventSelection, EventSearch}
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

	select {
	case ev := <-events:
		t.Errorf("unexpected event %+v for unchanged search term", ev)
	default:
	}
}

func TestSessionEventVersionsStayOrderedUnderConcurrentChanges(t *testing.T) {
	sess := NewSessions(loadedStore(t), 0, nil).Create()
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	const writers, perWriter = 4, subscriberBuffer / 4
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				sess.ToggleCategory("Camping")
			}
		}()
	}
	wg.Wait()

	var lastVersion uint64
	for i := 0; i < writers*perWriter; i++ {
		ev := <-events
		if ev.Version != lastVersion+1 {
			t.Fatalf("event %d has version %d after %d", i, ev.Version, lastVersion)
		}
		lastVersion = ev.Version
	}
}

func TestSlowSessionSubscriberDoesNotBlock(t *testing.T) {
	sess := NewSessions(New(), 0, nil).Create()
	_, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			sess.ToggleCategory("Camping")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mutations blocked on a full subscriber")
	}
}

func TestSessionsGet(t *testing.T) {
	m := NewSessions(New(), 0, nil)
	sess := m.Create()

	got, ok := m.Get(sess.ID)
	if !ok || got != sess {
		t.Errorf("Get(%q) = %v, %v", sess.ID, got, ok)
	}
	if _, ok := m.Get("unknown"); ok {
		t.Error("Get(unknown) found a session")
	}
}

func TestSessionsExpireIdle(t *testing.T) {
	rec := &stubRecorder{}
	m := NewSessions(New(), time.Hour, rec)
	defer m.Close()

	idle := m.Create()
	watched := m.Create()
	events, unsubscribe := watched.Subscribe()
	defer unsubscribe()
	fresh := m.Create()

	if _, n := rec.counts(); n != 3 {
		t.Errorf("active sessions = %d, want 3", n)
	}

	past := time.Now().Add(-2 * time.Hour).UnixNano()
	idle.lastSeen.Store(past)
	watched.lastSeen.Store(past)

	m.expire(time.Now())

	if _, ok := m.Get(idle.ID); ok {
		t.Error("idle session survived expiry")
	}
	if _, ok := m.Get(watched.ID); !ok {
		t.Error("session with a subscriber expired")
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("recent session expired")
	}
	if _, n := rec.counts(); n != 2 {
		t.Errorf("active sessions after expiry = %d, want 2", n)
	}

	m.Close()
	if _, ok := <-events; ok {
		t.Error("subscription open after Close")
	}
	if m.Len() != 0 {
		t.Errorf("Len after Close = %d, want 0", m.Len())
	}
}
