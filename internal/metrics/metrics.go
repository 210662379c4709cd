// Package metrics exposes Prometheus instrumentation for the memory engine.
// All methods are safe on a nil *Collector so components can run
// uninstrumented in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metrics for one running engine. Each collector owns a
// private registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	AnchorsLive      prometheus.Gauge
	AnchorsCreated   prometheus.Counter
	AnchorsDestroyed prometheus.Counter
	AnchorFailures   prometheus.Counter

	MemoriesAdded   prometheus.Counter
	MemoriesRemoved prometheus.Counter

	Persists        *prometheus.CounterVec
	PersistDuration prometheus.Histogram

	Taps *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a collector with all metrics registered under namespace.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		AnchorsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anchors_live",
			Help:      "Number of live visual anchors in the session",
		}),
		AnchorsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchors_created_total",
			Help:      "Total anchors created by reconciliation",
		}),
		AnchorsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchors_destroyed_total",
			Help:      "Total anchors destroyed by reconciliation or reset",
		}),
		AnchorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchor_create_failures_total",
			Help:      "Visual construction failures during reconciliation",
		}),
		MemoriesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_added_total",
			Help:      "Total memories created",
		}),
		MemoriesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_removed_total",
			Help:      "Total memories removed, including clear-all",
		}),
		Persists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_total",
			Help:      "Memory-set saves by result",
		}, []string{"result"}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Time spent saving a memory set",
			Buckets:   prometheus.DefBuckets,
		}),
		Taps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taps_total",
			Help:      "Tap resolutions by result",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.AnchorsLive, c.AnchorsCreated, c.AnchorsDestroyed, c.AnchorFailures,
		c.MemoriesAdded, c.MemoriesRemoved,
		c.Persists, c.PersistDuration,
		c.Taps,
		c.HTTPRequests, c.HTTPDuration,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the collector's private registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) AnchorsChanged(created, destroyed, live int) {
	if c == nil {
		return
	}
	c.AnchorsCreated.Add(float64(created))
	c.AnchorsDestroyed.Add(float64(destroyed))
	c.AnchorsLive.Set(float64(live))
}

func (c *Collector) AnchorFailed() {
	if c == nil {
		return
	}
	c.AnchorFailures.Inc()
}

func (c *Collector) MemoryAdded() {
	if c == nil {
		return
	}
	c.MemoriesAdded.Inc()
}

func (c *Collector) MemoriesDropped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.MemoriesRemoved.Add(float64(n))
}

// PersistDone records one save attempt.
func (c *Collector) PersistDone(err error, d time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Persists.WithLabelValues(result).Inc()
	c.PersistDuration.Observe(d.Seconds())
}

// TapResolved records a tap outcome: "hit" or "miss".
func (c *Collector) TapResolved(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.Taps.WithLabelValues(result).Inc()
}

// HTTPRequest records a served request.
func (c *Collector) HTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
