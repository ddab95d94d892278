// Package metrics exposes Prometheus instrumentation for sheet loads, the
// shared dataset and visitor sessions.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the application's Prometheus metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	SheetLoads        *prometheus.CounterVec
	SheetLoadDuration prometheus.Histogram
	RowsDropped       *prometheus.CounterVec

	LocationsLoaded prometheus.Gauge
	ActiveSessions  prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when reg is nil. Registering twice against the same
// registry returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	loads, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outings_sheet_loads_total",
		Help: "Sheet load attempts, labeled by result (ok or error).",
	}, []string{"result"}), "outings_sheet_loads_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outings_sheet_load_duration_seconds",
		Help:    "Time spent fetching and parsing the sheet.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "outings_sheet_load_duration_seconds")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outings_sheet_rows_dropped_total",
		Help: "Sheet rows discarded during ingestion, labeled by reason.",
	}, []string{"reason"}), "outings_sheet_rows_dropped_total")
	if err != nil {
		return nil, err
	}

	loaded, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outings_locations_loaded",
		Help: "Number of valid locations held by the store.",
	}), "outings_locations_loaded")
	if err != nil {
		return nil, err
	}

	sessions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outings_sessions_active",
		Help: "Number of visitor sessions holding filter state.",
	}), "outings_sessions_active")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		SheetLoads:        loads,
		SheetLoadDuration: duration,
		RowsDropped:       dropped,
		LocationsLoaded:   loaded,
		ActiveSessions:    sessions,
	}, nil
}

// ObserveLoad records one load attempt.
func (c *Collector) ObserveLoad(err error, d time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.SheetLoads.WithLabelValues(result).Inc()
	c.SheetLoadDuration.Observe(d.Seconds())
}

// AddDroppedRows adds n to the dropped row counter for reason.
func (c *Collector) AddDroppedRows(reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.RowsDropped.WithLabelValues(reason).Add(float64(n))
}

// SetLocations records the size of the loaded dataset.
func (c *Collector) SetLocations(n int) {
	if c == nil {
		return
	}
	c.LocationsLoaded.Set(float64(n))
}

// SetActiveSessions records the number of live visitor sessions.
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.ActiveSessions.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
