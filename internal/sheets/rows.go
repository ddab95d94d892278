package sheets

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/outings/internal/location"
)

// minColumns is the number of columns a row needs to be considered at all.
const minColumns = 5

// DropReason names why a data row was not turned into a record.
type DropReason string

const (
	DropShortRow            DropReason = "short_row"
	DropMissingID           DropReason = "missing_id"
	DropSentinelCoordinates DropReason = "sentinel_coordinates"
)

// LoadReport summarizes one load.
type LoadReport struct {
	Rows     int                // data rows after the header
	Kept     int                // rows that became records
	Dropped  map[DropReason]int // rows skipped, by reason
	Bytes    int64
	Duration time.Duration
}

// DroppedTotal returns the number of rows skipped for any reason.
func (r LoadReport) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

func (r *LoadReport) drop(reason DropReason) {
	if r.Dropped == nil {
		r.Dropped = make(map[DropReason]int)
	}
	r.Dropped[reason]++
}

// MapRows converts parsed CSV rows into records. The first row is the header
// and is skipped unconditionally.
func MapRows(rows [][]string) ([]location.Record, LoadReport) {
	records := make([]location.Record, 0, max(len(rows)-1, 0))
	var report LoadReport

	if len(rows) == 0 {
		return records, report
	}

	for _, row := range rows[1:] {
		report.Rows++

		if len(row) < minColumns {
			report.drop(DropShortRow)
			continue
		}
		if row[0] == "" {
			report.drop(DropMissingID)
			continue
		}

		rec := location.Record{
			ID:          row[0],
			Name:        column(row, 1),
			URL:         column(row, 2),
			Latitude:    ParseCoordinate(column(row, 3)),
			Longitude:   ParseCoordinate(column(row, 4)),
			Category:    column(row, 5),
			Subcategory: column(row, 6),
			Description: column(row, 7),
		}
		if rec.IsSentinel() {
			report.drop(DropSentinelCoordinates)
			continue
		}

		records = append(records, rec)
		report.Kept++
	}

	return records, report
}

func column(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseCoordinate reads the longest leading decimal number in s, so
// "37.5abc" yields 37.5. Text with no numeric prefix, and values that are not
// finite, yield 0.
func ParseCoordinate(s string) float64 {
	m := numericPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
