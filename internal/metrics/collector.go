// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the gateway exports.
type Collector struct {
	queriesTotal     *prometheus.CounterVec
	responseLatency  *prometheus.HistogramVec
	upstreamLatency  prometheus.Histogram
	dn42RefreshSecs  prometheus.Histogram
	patchMismatches  prometheus.Counter
	pluginTimeouts   *prometheus.CounterVec
	pluginErrors     *prometheus.CounterVec
	connectionsTotal *prometheus.CounterVec
	connectionsOpen  prometheus.Gauge
	kvSweptTotal     prometheus.Counter
}

// NewCollector builds an unregistered Collector.
func NewCollector() *Collector {
	return &Collector{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whois_queries_total",
				Help: "Total WHOIS queries processed, by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		responseLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whois_response_latency_seconds",
				Help:    "End-to-end latency of a query, by kind",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"kind"},
		),
		upstreamLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "whois_upstream_latency_seconds",
				Help:    "Latency of upstream WHOIS server round trips",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
		),
		dn42RefreshSecs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "whois_dn42_refresh_seconds",
				Help:    "Duration of DN42 registry mirror refreshes",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60},
			},
		),
		patchMismatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "whois_patch_download_mismatches_total",
				Help: "Total remote patch updates rejected for SHA1 mismatch",
			},
		),
		pluginTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whois_plugin_timeouts_total",
				Help: "Total plugin invocations that exceeded their timeout",
			},
			[]string{"plugin"},
		),
		pluginErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whois_plugin_errors_total",
				Help: "Total plugin invocations that returned a runtime error",
			},
			[]string{"plugin"},
		),
		connectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whois_connections_total",
				Help: "Total connections accepted, by transport",
			},
			[]string{"transport"},
		),
		connectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "whois_connections_open",
				Help: "Currently open connections",
			},
		),
		kvSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "whois_kv_swept_entries_total",
				Help: "Total expired KV store entries removed by the sweeper",
			},
		),
	}
}

// Register registers every metric with the default Prometheus registry.
func (c *Collector) Register() {
	prometheus.MustRegister(
		c.queriesTotal,
		c.responseLatency,
		c.upstreamLatency,
		c.dn42RefreshSecs,
		c.patchMismatches,
		c.pluginTimeouts,
		c.pluginErrors,
		c.connectionsTotal,
		c.connectionsOpen,
		c.kvSweptTotal,
	)
}

func (c *Collector) ObserveQuery(kind, status string) {
	c.queriesTotal.WithLabelValues(kind, status).Inc()
}

func (c *Collector) ObserveResponseLatency(kind string, seconds float64) {
	c.responseLatency.WithLabelValues(kind).Observe(seconds)
}

func (c *Collector) ObserveUpstreamLatency(seconds float64) {
	c.upstreamLatency.Observe(seconds)
}

func (c *Collector) ObserveDN42Refresh(seconds float64) {
	c.dn42RefreshSecs.Observe(seconds)
}

func (c *Collector) IncPatchMismatch() {
	c.patchMismatches.Inc()
}

func (c *Collector) IncPluginTimeout(plugin string) {
	c.pluginTimeouts.WithLabelValues(plugin).Inc()
}

func (c *Collector) IncPluginError(plugin string) {
	c.pluginErrors.WithLabelValues(plugin).Inc()
}

func (c *Collector) IncConnection(transport string) {
	c.connectionsTotal.WithLabelValues(transport).Inc()
}

func (c *Collector) ConnectionOpened() { c.connectionsOpen.Inc() }
func (c *Collector) ConnectionClosed() { c.connectionsOpen.Dec() }

func (c *Collector) AddSwept(n int) {
	c.kvSweptTotal.Add(float64(n))
}

// Handler returns the HTTP handler to mount at /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}
