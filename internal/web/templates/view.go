// Package templates renders the outings pages as templ components.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

import (
	"github.com/JonMunkholm/outings/internal/core"
	"github.com/JonMunkholm/outings/internal/location"
)

// Active page identifiers for navigation highlighting.
const (
	PageMap        = "map"
	PageCategories = "categories"
	PageAbout      = "about"
)

// Page carries what every page needs: title, navigation and sidebar.
type Page struct {
	Title      string
	BasePath   string
	Active     string
	SearchTerm string
	Sidebar    []SidebarCategory
}

// SidebarCategory is one category entry in the sidebar and the map filter.
type SidebarCategory struct {
	Name          string
	Style         location.Style
	Count         int
	Selected      bool
	Subcategories []string
}

// Banner is the map page notice shown while a search term is active.
type Banner struct {
	Shown int
	Total int
	Term  string
}

// MapData is the map page model. MarkersJSON is the JSON document read by
// static/app.js and must come from encoding/json so that it is safe inside a
// script element.
type MapData struct {
	Page
	Loading     bool
	Error       *core.UserMessage
	Banner      *Banner
	Categories  []SidebarCategory
	MarkersJSON []byte
}

// Card is one location card on the categories page.
type Card struct {
	Record   location.Record
	Style    location.Style
	MapLink  string
	Distance string
}

// CategoriesData is the categories page model.
type CategoriesData struct {
	Page
	Loading  bool
	Error    *core.UserMessage
	Category string
	Cards    []Card
}
