package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PostsScanned    *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	GenerateCalls   *prometheus.CounterVec
	BlocklistOps    *prometheus.CounterVec
	ScanDuration    prometheus.Histogram
	ActiveScans     prometheus.Gauge
}

// NewMetrics creates and registers the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PostsScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blocksweep_posts_scanned_total",
				Help: "Posts returned by search, by admission outcome",
			},
			[]string{"outcome"},
		),

		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blocksweep_classifications_total",
				Help: "Final per-post classification records by deciding source and intent",
			},
			[]string{"source", "intent"},
		),

		GenerateCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blocksweep_generate_calls_total",
				Help: "Calls to the generation model by kind and result",
			},
			[]string{"kind", "result"},
		),

		BlocklistOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blocksweep_blocklist_operations_total",
				Help: "Blocklist add and remove operations by result",
			},
			[]string{"op", "result"},
		),

		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blocksweep_scan_duration_seconds",
				Help:    "Wall time of complete scans",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),

		ActiveScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blocksweep_active_scans",
				Help: "Number of scans currently running",
			},
		),
	}

	m.registry.MustRegister(
		m.PostsScanned,
		m.Classifications,
		m.GenerateCalls,
		m.BlocklistOps,
		m.ScanDuration,
		m.ActiveScans,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObservePost(outcome string) {
	if m == nil {
		return
	}
	m.PostsScanned.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveClassification(source, intent string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(source, intent).Inc()
}

func (m *Metrics) ObserveGenerate(kind, result string) {
	if m == nil {
		return
	}
	m.GenerateCalls.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveBlocklistOp(op string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.BlocklistOps.WithLabelValues(op, result).Inc()
}

// ScanStarted marks a scan as running and returns a func that records its end.
func (m *Metrics) ScanStarted() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.ActiveScans.Inc()
	return func() {
		m.ActiveScans.Dec()
		m.ScanDuration.Observe(time.Since(start).Seconds())
	}
}
