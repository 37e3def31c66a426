// Package metrics provides the Prometheus collectors for the harvest server
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the server records into
type Metrics struct {
	reg *prometheus.Registry

	HTTPRequestsTotal *prometheus.CounterVec   // by method and status
	HTTPDuration      *prometheus.HistogramVec // by method

	VerbRequestsTotal *prometheus.CounterVec   // by verb and outcome
	VerbDuration      *prometheus.HistogramVec // by verb

	PercolateDuration prometheus.Histogram
	PercolateErrors   *prometheus.CounterVec // by kind: parse, transient, timeout

	SetsCacheTotal *prometheus.CounterVec // by result: hit, miss, error

	RecomputeRecords *prometheus.CounterVec // by result: changed, unchanged
	TokensIssued     prometheus.Counter
}

// New registers every collector on a fresh registry, plus the go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oai_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oai_http_request_duration_seconds",
			Help:    "HTTP request latency by method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		VerbRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oai_verb_requests_total",
			Help: "Protocol requests by verb and outcome (ok, protocol error name, or failure)",
		}, []string{"verb", "outcome"}),
		VerbDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oai_verb_duration_seconds",
			Help:    "Protocol request latency by verb",
			Buckets: prometheus.DefBuckets,
		}, []string{"verb"}),
		PercolateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "oai_percolate_duration_seconds",
			Help:    "Time to evaluate one record against every patterned set",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),
		PercolateErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oai_percolate_errors_total",
			Help: "Per set evaluation failures by kind",
		}, []string{"kind"}),
		SetsCacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oai_sets_cache_total",
			Help: "Set snapshot cache lookups by result",
		}, []string{"result"}),
		RecomputeRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oai_recompute_records_total",
			Help: "Records visited by membership recomputes by result",
		}, []string{"result"}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "oai_resumption_tokens_issued_total",
			Help: "Resumption tokens handed to harvesters",
		}),
	}
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveHTTP records one finished HTTP request; matches the access log Observe hook
func (m *Metrics) ObserveHTTP(r *http.Request, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())
}

// ObserveVerb records one protocol request
// the helpers below accept a nil *Metrics so components run unmetered in tests
func (m *Metrics) ObserveVerb(verb, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if verb == "" {
		verb = "none"
	}
	m.VerbRequestsTotal.WithLabelValues(verb, outcome).Inc()
	m.VerbDuration.WithLabelValues(verb).Observe(elapsed.Seconds())
}

// CacheResult records a snapshot cache lookup
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.SetsCacheTotal.WithLabelValues(result).Inc()
}

// ObservePercolate records one record evaluation
func (m *Metrics) ObservePercolate(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PercolateDuration.Observe(elapsed.Seconds())
}

// PercolateError counts a failed set evaluation by kind
func (m *Metrics) PercolateError(kind string) {
	if m == nil {
		return
	}
	m.PercolateErrors.WithLabelValues(kind).Inc()
}

// Recomputed counts a record visited by the recompute job
func (m *Metrics) Recomputed(result string) {
	if m == nil {
		return
	}
	m.RecomputeRecords.WithLabelValues(result).Inc()
}

// TokenIssued counts a resumption token handed out
func (m *Metrics) TokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssued.Inc()
}
