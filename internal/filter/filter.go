// Package filter narrows location records by category, free-text search and
// pinned coordinates. Every function is pure: inputs are never modified.
package filter

import (
	"math"
	"sort"
	"strings"

	"github.com/JonMunkholm/outings/internal/location"
)

// PinTolerance is the per-axis distance in degrees within which a record
// matches a pinned point.
const PinTolerance = 0.001

// AllCategories is the category browser value meaning "no category filter".
const AllCategories = "all"

// ByCategory keeps records whose category is in selected. An empty set keeps
// nothing.
func ByCategory(records []location.Record, selected Set) []location.Record {
	out := make([]location.Record, 0, len(records))
	if len(selected) == 0 {
		return out
	}
	for _, r := range records {
		if selected.Has(r.Category) {
			out = append(out, r)
		}
	}
	return out
}

// BySearch keeps records whose name, description, category or subcategory
// contains term, ignoring case. A blank term returns records unchanged.
func BySearch(records []location.Record, term string) []location.Record {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return records
	}

	out := make([]location.Record, 0, len(records))
	for _, r := range records {
		if matchesSearch(r, needle) {
			out = append(out, r)
		}
	}
	return out
}

func matchesSearch(r location.Record, needle string) bool {
	for _, field := range []string{r.Name, r.Description, r.Category, r.Subcategory} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// ByPinpoint keeps records within PinTolerance degrees of target on both axes.
func ByPinpoint(records []location.Record, target location.Point) []location.Record {
	out := make([]location.Record, 0, len(records))
	for _, r := range records {
		if math.Abs(r.Latitude-target.Lat) < PinTolerance &&
			math.Abs(r.Longitude-target.Lng) < PinTolerance {
			out = append(out, r)
		}
	}
	return out
}

// MapView composes the map page filters: category, then pinpoint when pin is
// set, then search.
func MapView(records []location.Record, selected Set, pin *location.Point, term string) []location.Record {
	out := ByCategory(records, selected)
	if pin != nil {
		out = ByPinpoint(out, *pin)
	}
	return BySearch(out, term)
}

// CategoryView composes the category browser filters. category "all" or ""
// keeps every record; otherwise only exact matches. Search is applied last.
func CategoryView(records []location.Record, category, term string) []location.Record {
	out := records
	if category != "" && category != AllCategories {
		out = make([]location.Record, 0, len(records))
		for _, r := range records {
			if r.Category == category {
				out = append(out, r)
			}
		}
	}
	return BySearch(out, term)
}

// SortByDistance returns a copy of records ordered by great-circle distance
// from origin, nearest first. Ties keep their input order.
func SortByDistance(records []location.Record, origin location.Point) []location.Record {
	out := make([]location.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return location.HaversineDistance(origin, out[i].Point()) <
			location.HaversineDistance(origin, out[j].Point())
	})
	return out
}

// Categories returns the distinct categories of records in first-seen order.
func Categories(records []location.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// Subcategories returns the distinct non-blank subcategories of records in
// lexical order. When category is non-empty only records in that category
// contribute.
func Subcategories(records []location.Record, category string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if category != "" && r.Category != category {
			continue
		}
		if !r.HasSubcategory() || seen[r.Subcategory] {
			continue
		}
		seen[r.Subcategory] = true
		out = append(out, r.Subcategory)
	}
	sort.Strings(out)
	return out
}

// CountByCategory returns how many records fall in each category.
func CountByCategory(records []location.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Category]++
	}
	return counts
}
