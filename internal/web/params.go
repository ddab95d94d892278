package web

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/outings/internal/core"
	"github.com/JonMunkholm/outings/internal/location"
)

// mapQuery is the parsed form of the map page and /api/locations query.
type mapQuery struct {
	Pin       *location.Point
	Zoom      int
	Search    string
	HasSearch bool
}

// parseMapQuery reads lat, lng, zoom and search. A pin needs both lat and
// lng; a lone coordinate is ignored. Unparseable or out-of-range values are
// returned as errors so the API can reject them, while pages fall back to the
// defaults. Zoom defaults to pinnedZoom with a pin and defaultZoom without.
func parseMapQuery(q url.Values, defaultZoom, pinnedZoom int) (mapQuery, error) {
	mq := mapQuery{Zoom: defaultZoom}

	if q.Has("search") {
		mq.HasSearch = true
		mq.Search = q.Get("search")
	}

	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	latRaw, lngRaw := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if latRaw != "" && lngRaw != "" {
		lat, latErr := parseDegrees(latRaw, 90)
		lng, lngErr := parseDegrees(lngRaw, 180)
		switch {
		case latErr != nil:
			fail(core.InvalidParam("lat", latRaw))
		case lngErr != nil:
			fail(core.InvalidParam("lng", lngRaw))
		default:
			mq.Pin = &location.Point{Lat: lat, Lng: lng}
			mq.Zoom = pinnedZoom
		}
	}

	if zoomRaw := strings.TrimSpace(q.Get("zoom")); zoomRaw != "" {
		zoom, err := strconv.Atoi(zoomRaw)
		if err != nil || zoom < 0 || zoom > 19 {
			fail(core.InvalidParam("zoom", zoomRaw))
		} else {
			mq.Zoom = zoom
		}
	}

	return mq, firstErr
}

func parseDegrees(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// categoryParam decodes the {category} path segment. Category names contain
// slashes ("Auto/Aviation/Trains") so clients send them as %2F.
func categoryParam(raw string) (string, error) {
	name, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(name) == "" {
		return "", core.InvalidParam("category", raw)
	}
	return name, nil
}
