// Package metrics provides Prometheus metrics for the static responder and
// its stat cache. Every series carries a site label so several sites can
// share one registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stat cache lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Registry owns the collectors of one server instance.
type Registry struct {
	registry *prometheus.Registry

	responses    *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	streamErrors *prometheus.CounterVec

	// Stat cache metrics
	lookups *prometheus.CounterVec
	entries *prometheus.GaugeVec
}

// NewRegistry creates a registry with the static_hub collectors plus the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		responses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "static_hub_responses_total",
				Help: "Total number of static responses by site and status code",
			},
			[]string{"site", "status"},
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "static_hub_bytes_streamed_total",
				Help: "Total file bytes streamed to clients",
			},
			[]string{"site"},
		),
		streamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "static_hub_stream_errors_total",
				Help: "Total number of transfers aborted after headers were sent",
			},
			[]string{"site"},
		),
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "static_hub_stat_cache_lookups_total",
				Help: "Stat cache lookups by site and result (hit, miss, error)",
			},
			[]string{"site", "result"},
		),
		entries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "static_hub_stat_cache_entries",
				Help: "Number of records currently held by the stat cache",
			},
			[]string{"site"},
		),
	}
}

// Site returns the metric handles bound to one site.
func (r *Registry) Site(name string) *Site {
	if r == nil {
		return nil
	}
	labels := prometheus.Labels{"site": name}
	return &Site{
		responses:    r.responses.MustCurryWith(labels),
		bytes:        r.bytes.WithLabelValues(name),
		streamErrors: r.streamErrors.WithLabelValues(name),
		lookups:      r.lookups.MustCurryWith(labels),
		entries:      r.entries.WithLabelValues(name),
	}
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the Prometheus metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Site 是单个站点的指标句柄；nil 值可安全调用，所有记录均被忽略。
type Site struct {
	responses    *prometheus.CounterVec
	bytes        prometheus.Counter
	streamErrors prometheus.Counter
	lookups      *prometheus.CounterVec
	entries      prometheus.Gauge
}

// RecordResponse records the final status of a static response.
func (s *Site) RecordResponse(status int) {
	if s == nil {
		return
	}
	s.responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordBytesStreamed adds n to the streamed bytes counter.
func (s *Site) RecordBytesStreamed(n int64) {
	if s == nil || n <= 0 {
		return
	}
	s.bytes.Add(float64(n))
}

// RecordStreamError counts a transfer that failed mid-stream.
func (s *Site) RecordStreamError() {
	if s == nil {
		return
	}
	s.streamErrors.Inc()
}

// RecordStatLookup counts a stat cache lookup.
func (s *Site) RecordStatLookup(result string) {
	if s == nil {
		return
	}
	s.lookups.WithLabelValues(result).Inc()
}

// SetStatCacheEntries updates the site's stat cache size gauge.
func (s *Site) SetStatCacheEntries(n int) {
	if s == nil {
		return
	}
	s.entries.Set(float64(n))
}
