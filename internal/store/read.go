package store

import (
	"time"

	"github.com/JonMunkholm/outings/internal/filter"
	"github.com/JonMunkholm/outings/internal/location"
)

// Snapshot is a consistent view of the dataset at one instant, plus the
// selection and search term of the session that took it. Slices are shared
// with the store and must be treated as read-only.
type Snapshot struct {
	Records    []location.Record
	Categories []string
	Selected   filter.Set
	SearchTerm string
	Status     Status
	Err        error
	LoadID     string
	LoadedAt   time.Time
	Version    uint64 // dataset version
}

// Loading reports whether no dataset has been installed yet and a load is
// pending or running. A reload over existing records is not Loading.
func (s Snapshot) Loading() bool {
	return len(s.Records) == 0 && (s.Status == StatusLoading || s.Status == StatusIdle)
}

// Filtered returns the records whose category is selected.
func (s Snapshot) Filtered() []location.Record {
	return filter.ByCategory(s.Records, s.Selected)
}

// Snapshot captures the current dataset. Selected is empty; use
// Session.Snapshot for a view with filters applied.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Records:    s.records,
		Categories: s.categories,
		Selected:   filter.NewSet(),
		Status:     s.status,
		Err:        s.lastErr,
		LoadID:     s.loadID,
		LoadedAt:   s.loadedAt,
		Version:    s.version,
	}
}

// Records returns every valid record in sheet order. The slice must not be
// modified.
func (s *Store) Records() []location.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// AllCategories returns the distinct categories in first-seen order.
func (s *Store) AllCategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.categories...)
}

// Subcategories returns the sorted distinct non-blank subcategories.
func (s *Store) Subcategories() []string {
	return s.SubcategoriesOf("")
}

// SubcategoriesOf limits Subcategories to one category. An empty category
// means all.
func (s *Store) SubcategoriesOf(category string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter.Subcategories(s.records, category)
}

// Status returns the load status and the last load error, if any.
func (s *Store) Status() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.lastErr
}
