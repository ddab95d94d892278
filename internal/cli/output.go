package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/outings/internal/filter"
	"github.com/JonMunkholm/outings/internal/location"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// LocationsResult is what fetch prints.
type LocationsResult struct {
	SheetID   string            `json:"sheet_id"`
	Locations []location.Record `json:"locations"`
	Count     int               `json:"count"`
	Total     int               `json:"total"`
}

// CategorySummary describes one category for the categories command.
type CategorySummary struct {
	Name          string   `json:"name"`
	Count         int      `json:"count"`
	Color         string   `json:"color"`
	Emoji         string   `json:"emoji"`
	Subcategories []string `json:"subcategories"`
}

func summarizeCategories(records []location.Record) []CategorySummary {
	counts := filter.CountByCategory(records)
	names := filter.Categories(records)
	out := make([]CategorySummary, 0, len(names))
	for _, name := range names {
		style := location.StyleFor(name)
		subs := filter.Subcategories(records, name)
		if subs == nil {
			subs = []string{}
		}
		out = append(out, CategorySummary{
			Name:          name,
			Count:         counts[name],
			Color:         style.Color,
			Emoji:         style.Emoji,
			Subcategories: subs,
		})
	}
	return out
}

// WriteLocations writes the fetch result in the specified format.
func WriteLocations(w io.Writer, result *LocationsResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		if result.Locations == nil {
			result.Locations = []location.Record{}
		}
		return writeJSON(w, result)
	case FormatText:
		if result.Count == 0 {
			_, err := fmt.Fprintln(w, "No locations found.")
			return err
		}
		for _, r := range result.Locations {
			fmt.Fprintf(w, "%s [%s] %s (%s)\n", r.ID, r.Category, r.Name, r.CoordinatesLabel())
			if r.HasSubcategory() {
				fmt.Fprintf(w, "     Type: %s\n", r.Subcategory)
			}
			if r.HasURL() {
				fmt.Fprintf(w, "     URL:  %s\n", r.URL)
			}
		}
		_, err := fmt.Fprintf(w, "\nShowing %d of %d locations\n", result.Count, result.Total)
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteCategories writes category summaries in the specified format.
func WriteCategories(w io.Writer, categories []CategorySummary, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, categories)
	case FormatText:
		if len(categories) == 0 {
			_, err := fmt.Fprintln(w, "No categories found.")
			return err
		}
		for _, c := range categories {
			fmt.Fprintf(w, "%s %s (%d) %s\n", c.Emoji, c.Name, c.Count, c.Color)
			for _, sub := range c.Subcategories {
				fmt.Fprintf(w, "    • %s\n", sub)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
