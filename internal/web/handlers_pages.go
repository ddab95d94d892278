package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/outings/internal/core"
	"github.com/JonMunkholm/outings/internal/filter"
	"github.com/JonMunkholm/outings/internal/location"
	"github.com/JonMunkholm/outings/internal/logging"
	"github.com/JonMunkholm/outings/internal/store"
	"github.com/JonMunkholm/outings/internal/web/templates"
)

// pageFor builds the shared page model: navigation state and the sidebar
// category tree.
func (s *Server) pageFor(snap store.Snapshot, active, title string) templates.Page {
	return templates.Page{
		Title:      title,
		BasePath:   s.basePath(),
		Active:     active,
		SearchTerm: snap.SearchTerm,
		Sidebar:    sidebarCategories(snap),
	}
}

func sidebarCategories(snap store.Snapshot) []templates.SidebarCategory {
	counts := filter.CountByCategory(snap.Records)
	out := make([]templates.SidebarCategory, 0, len(snap.Categories))
	for _, name := range snap.Categories {
		out = append(out, templates.SidebarCategory{
			Name:          name,
			Style:         location.StyleFor(name),
			Count:         counts[name],
			Selected:      snap.Selected.Has(name),
			Subcategories: filter.Subcategories(snap.Records, name),
		})
	}
	return out
}

// loadError returns the user message for a failed load, or nil when the
// store is healthy.
func loadError(snap store.Snapshot) *core.UserMessage {
	if snap.Status != store.StatusFailed || snap.Err == nil {
		return nil
	}
	msg := core.MapError(snap.Err)
	return &msg
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render page", "path", r.URL.Path, "error", err)
	}
}

// mapPayload is the JSON document embedded in the map page for app.js.
type mapPayload struct {
	Center       [2]float64 `json:"center"`
	Zoom         int        `json:"zoom"`
	TileURL      string     `json:"tileUrl"`
	Attribution  string     `json:"attribution"`
	LocationsURL string     `json:"locationsUrl"`
	Locations    []marker   `json:"locations"`
}

// marker is a record with its category colour attached.
type marker struct {
	location.Record
	Color string `json:"color"`
}

func markersFor(records []location.Record) []marker {
	out := make([]marker, len(records))
	for i, r := range records {
		out[i] = marker{Record: r, Color: location.StyleFor(r.Category).Color}
	}
	return out
}

// handleMap renders the map page. A search parameter sets the visitor's
// search term; lat and lng pin the view and filter markers to that spot.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	mq, err := parseMapQuery(r.URL.Query(), s.cfg.Map.DefaultZoom, s.cfg.Map.PinnedZoom)
	if err != nil {
		logRequestWarn(r, "ignoring map query", err)
	}
	if mq.HasSearch {
		sess.SetSearchTerm(mq.Search)
	}

	snap := sess.Snapshot()
	markers := filter.MapView(snap.Records, snap.Selected, mq.Pin, snap.SearchTerm)

	center := [2]float64{s.cfg.Map.CenterLat, s.cfg.Map.CenterLng}
	locationsURL := s.basePath() + "api/locations"
	if mq.Pin != nil {
		center = [2]float64{mq.Pin.Lat, mq.Pin.Lng}
		locationsURL += fmt.Sprintf("?lat=%g&lng=%g", mq.Pin.Lat, mq.Pin.Lng)
	}

	payload, err := json.Marshal(mapPayload{
		Center:       center,
		Zoom:         mq.Zoom,
		TileURL:      s.cfg.Map.TileURL,
		Attribution:  s.cfg.Map.TileAttribution,
		LocationsURL: locationsURL,
		Locations:    markersFor(markers),
	})
	if err != nil {
		s.respondError(w, r, fmt.Errorf("encode map data: %w", err), http.StatusInternalServerError)
		return
	}

	page := s.pageFor(snap, templates.PageMap, "Map")
	data := templates.MapData{
		Page:        page,
		Loading:     snap.Loading(),
		Error:       loadError(snap),
		Categories:  page.Sidebar,
		MarkersJSON: payload,
	}
	if snap.SearchTerm != "" {
		data.Banner = &templates.Banner{
			Shown: len(markers),
			Total: len(snap.Filtered()),
			Term:  snap.SearchTerm,
		}
	}
	s.render(w, r, templates.MapPage(data))
}

// handleCategories renders the card browser. A search parameter sets the
// visitor's term, even to empty, and a non-empty one shows every category.
// Without a search parameter, a category other than "all" clears the term.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		category = filter.AllCategories
	}

	if q.Has("search") {
		search := q.Get("search")
		sess.SetSearchTerm(search)
		if search != "" {
			category = filter.AllCategories
		}
	} else if q.Has("category") && category != filter.AllCategories {
		sess.SetSearchTerm("")
	}

	snap := sess.Snapshot()
	page := s.pageFor(snap, templates.PageCategories, "Categories")
	data := templates.CategoriesData{
		Page:     page,
		Loading:  snap.Loading(),
		Error:    loadError(snap),
		Category: category,
	}

	records := filter.CategoryView(snap.Records, category, snap.SearchTerm)
	mq, err := parseMapQuery(q, s.cfg.Map.DefaultZoom, s.cfg.Map.PinnedZoom)
	if err != nil {
		logRequestWarn(r, "ignoring distance origin", err)
	}
	if mq.Pin != nil {
		records = filter.SortByDistance(records, *mq.Pin)
	}

	data.Cards = make([]templates.Card, 0, len(records))
	for _, rec := range records {
		card := templates.Card{
			Record:  rec,
			Style:   location.StyleFor(rec.Category),
			MapLink: rec.MapLink(s.basePath()),
		}
		if mq.Pin != nil {
			card.Distance = distanceLabel(location.HaversineDistance(*mq.Pin, rec.Point()))
		}
		data.Cards = append(data.Cards, card)
	}

	s.render(w, r, templates.CategoriesPage(data))
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r)
	s.render(w, r, templates.AboutPage(s.pageFor(snap, templates.PageAbout, "About")))
}

// distanceLabel formats a distance in metres for a card.
func distanceLabel(metres float64) string {
	if metres < 1000 {
		return fmt.Sprintf("%.0f m", metres)
	}
	return fmt.Sprintf("%.1f km", metres/1000)
}

func logRequestWarn(r *http.Request, msg string, err error) {
	logging.FromContext(r.Context()).Warn(msg, "path", r.URL.Path, "error", err)
}
