package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/outings/internal/core"
	"github.com/JonMunkholm/outings/internal/filter"
	"github.com/JonMunkholm/outings/internal/location"
	"github.com/JonMunkholm/outings/internal/store"
)

// maxSearchBody bounds the PUT /api/search request body.
const maxSearchBody = 4 << 10

// LocationsResponse is the body of GET /api/locations.
type LocationsResponse struct {
	Locations  []marker        `json:"locations"`
	Count      int             `json:"count"`
	Total      int             `json:"total"`
	SearchTerm string          `json:"searchTerm"`
	Pinned     *location.Point `json:"pinned,omitempty"`
	Status     store.Status    `json:"status"`
}

// CategoryInfo describes one category with its style and record count.
type CategoryInfo struct {
	Name          string         `json:"name"`
	Style         location.Style `json:"style"`
	Count         int            `json:"count"`
	Selected      bool           `json:"selected"`
	Subcategories []string       `json:"subcategories"`
}

// CategoriesResponse is the body of GET /api/categories and of every
// selection mutation.
type CategoriesResponse struct {
	Categories []CategoryInfo `json:"categories"`
	Selected   []string       `json:"selected"`
	All        []string       `json:"all"`
	Status     store.Status   `json:"status"`
}

// handleLocations returns the map view. The search parameter overrides the
// visitor's term for this request only. Until the first load finishes it
// answers 503 so clients can tell "not loaded" from "nothing matches".
func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	mq, err := parseMapQuery(r.URL.Query(), s.cfg.Map.DefaultZoom, s.cfg.Map.PinnedZoom)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	snap := sessionFrom(r.Context()).Snapshot()
	if snap.Loading() {
		s.respondError(w, r, core.ErrDatasetNotLoaded, http.StatusServiceUnavailable)
		return
	}
	term := snap.SearchTerm
	if mq.HasSearch {
		term = mq.Search
	}

	records := filter.MapView(snap.Records, snap.Selected, mq.Pin, term)
	writeJSON(w, LocationsResponse{
		Locations:  markersFor(records),
		Count:      len(records),
		Total:      len(snap.Filtered()),
		SearchTerm: term,
		Pinned:     mq.Pin,
		Status:     snap.Status,
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	snap := sessionFrom(r.Context()).Snapshot()
	if snap.Loading() {
		s.respondError(w, r, core.ErrDatasetNotLoaded, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, categoriesResponse(snap))
}

func categoriesResponse(snap store.Snapshot) CategoriesResponse {
	all := make([]string, len(snap.Categories))
	copy(all, snap.Categories)

	infos := make([]CategoryInfo, 0, len(snap.Categories))
	for _, c := range sidebarCategories(snap) {
		subs := c.Subcategories
		if subs == nil {
			subs = []string{}
		}
		infos = append(infos, CategoryInfo{
			Name:          c.Name,
			Style:         c.Style,
			Count:         c.Count,
			Selected:      c.Selected,
			Subcategories: subs,
		})
	}

	return CategoriesResponse{
		Categories: infos,
		Selected:   snap.Selected.Sorted(),
		All:        all,
		Status:     snap.Status,
	}
}

// handleToggleCategory flips one category. Only categories present in the
// loaded dataset can be toggled.
func (s *Server) handleToggleCategory(w http.ResponseWriter, r *http.Request) {
	category, err := categoryParam(chi.URLParam(r, "category"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	ds := s.store.Snapshot()
	if ds.Loading() {
		s.respondError(w, r, core.ErrDatasetNotLoaded, http.StatusServiceUnavailable)
		return
	}
	if !slices.Contains(ds.Categories, category) {
		s.respondError(w, r, core.InvalidParam("category", category), http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	sess.ToggleCategory(category)
	writeJSON(w, categoriesResponse(sess.Snapshot()))
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.SelectAll()
	writeJSON(w, categoriesResponse(sess.Snapshot()))
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.ClearAll()
	writeJSON(w, categoriesResponse(sess.Snapshot()))
}

// SearchRequest is the body of PUT /api/search.
type SearchRequest struct {
	Term string `json:"term"`
}

func (s *Server) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	sess.SetSearchTerm(req.Term)
	writeJSON(w, map[string]string{"searchTerm": sess.SearchTerm()})
}

// ReloadResponse is the body of POST /api/reload.
type ReloadResponse struct {
	Status    store.Status `json:"status"`
	LoadID    string       `json:"loadId"`
	Locations int          `json:"locations"`
	LoadedAt  time.Time    `json:"loadedAt"`
}

// handleReload fetches the sheet again. The load outlives a disconnecting
// client so that other waiters still get the result.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.Server.RequestTimeout)
	defer cancel()

	if err := s.store.Load(ctx, s.loader, s.cfg.Sheet.ID); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.respondError(w, r, err, status)
		return
	}

	snap := s.store.Snapshot()
	writeJSON(w, ReloadResponse{
		Status:    snap.Status,
		LoadID:    snap.LoadID,
		Locations: len(snap.Records),
		LoadedAt:  snap.LoadedAt,
	})
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string       `json:"status"`
	Dataset   store.Status `json:"dataset"`
	Locations int          `json:"locations"`
	LoadID    string       `json:"loadId,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// handleHealth reports liveness. The server stays healthy while serving a
// stale dataset; the dataset status tells health checks how fresh it is.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	resp := HealthResponse{
		Status:    "ok",
		Dataset:   snap.Status,
		Locations: len(snap.Records),
		LoadID:    snap.LoadID,
	}
	if snap.Err != nil {
		resp.Error = core.MapError(snap.Err).Code
	}
	writeJSON(w, resp)
}
