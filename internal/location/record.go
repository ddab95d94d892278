// Package location defines the scout outing record loaded from the published
// sheet, the shared category style table, and small geographic helpers.
package location

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Record is one scouting location as published in the sheet.
//
// A valid record has a non-empty ID and coordinates other than (0, 0).
// Empty URL, Subcategory and Description mean the value is absent.
type Record struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Description string  `json:"description"`
}

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the record's coordinates.
func (r Record) Point() Point {
	return Point{Lat: r.Latitude, Lng: r.Longitude}
}

// HasURL reports whether the record links to an external website.
func (r Record) HasURL() bool { return r.URL != "" }

// HasSubcategory reports whether the record carries a finer classification.
func (r Record) HasSubcategory() bool { return strings.TrimSpace(r.Subcategory) != "" }

// HasDescription reports whether the record has free text to show.
func (r Record) HasDescription() bool { return r.Description != "" }

// IsSentinel reports whether both coordinates are exactly zero, the value the
// sheet uses for "no coordinates provided".
func (r Record) IsSentinel() bool {
	return r.Latitude == 0 && r.Longitude == 0
}

// CoordinatesLabel formats the coordinates to four decimals for display.
func (r Record) CoordinatesLabel() string {
	return fmt.Sprintf("%.4f, %.4f", r.Latitude, r.Longitude)
}

// MapLink builds the deep link that opens the map pinned to this record.
// basePath is the application's mount point ("/" or "/outinglocations/").
func (r Record) MapLink(basePath string) string {
	if basePath == "" {
		basePath = "/"
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(r.Latitude, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(r.Longitude, 'f', -1, 64))
	q.Set("zoom", "15")
	return basePath + "?" + q.Encode()
}
