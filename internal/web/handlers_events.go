package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/outings/internal/logging"
	"github.com/JonMunkholm/outings/internal/store"
)

// heartbeatInterval keeps idle event streams open through proxies.
var heartbeatInterval = 25 * time.Second

// handleEvents streams dataset changes and the visitor's own filter changes
// as server-sent events. The first event describes the current state so a
// client can sync immediately; each later change arrives as a "change" event
// carrying the store Event. Event ids count per stream, since dataset and
// session versions are independent.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		rc := http.NewResponseController(w)
		if err := rc.Flush(); err != nil {
			writeError(w, http.StatusInternalServerError, "streaming unsupported: "+err.Error())
			return
		}
		flusher = flushFunc(func() { _ = rc.Flush() })
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sess := sessionFrom(r.Context())
	dataset, unsubscribeDataset := s.store.Subscribe()
	defer unsubscribeDataset()
	filters, unsubscribeFilters := sess.Subscribe()
	defer unsubscribeFilters()

	logger := logging.FromContext(r.Context())
	logger.Debug("event stream opened", "session_id", sess.ID)
	defer logger.Debug("event stream closed", "session_id", sess.ID)

	var seq uint64
	send := func(name string, ev store.Event) bool {
		seq++
		if err := writeEvent(w, seq, name, ev); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	snap := sess.Snapshot()
	if !send("state", store.Event{Kind: stateKind(snap.Status), Version: snap.Version, LoadID: snap.LoadID}) {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-dataset:
			if !ok || !send("change", ev) {
				return
			}
		case ev, ok := <-filters:
			if !ok || !send("change", ev) {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// stateKind maps the store status onto the event kinds clients understand.
func stateKind(status store.Status) store.EventKind {
	if status == store.StatusFailed {
		return store.EventLoadFailed
	}
	return store.EventLoaded
}

func writeEvent(w http.ResponseWriter, id uint64, name string, ev store.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, name, data)
	return err
}

type flushFunc func()

func (f flushFunc) Flush() { f() }
