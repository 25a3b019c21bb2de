package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SearchMetrics holds the Prometheus metrics of one search run.
// A nil *SearchMetrics records nothing.
type SearchMetrics struct {
	registry *prometheus.Registry

	// Search progress
	CandidatesTotal   *prometheus.CounterVec
	CompositionsTotal *prometheus.CounterVec
	CurrentDistance   prometheus.Gauge

	// Oracle metrics
	OracleLatency     *prometheus.HistogramVec
	OracleErrorsTotal *prometheus.CounterVec
	ReadRetriesTotal  prometheus.Counter

	// Memo metrics
	MemoHitsTotal prometheus.Counter
}

// NewSearchMetrics registers the search metrics on a fresh registry.
func NewSearchMetrics() *SearchMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &SearchMetrics{
		registry: reg,

		CandidatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cracker_candidates_tested_total",
				Help: "Total number of candidates handed to the oracle",
			},
			[]string{"distance"},
		),

		CompositionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cracker_compositions_total",
				Help: "Total number of edit compositions enumerated",
			},
			[]string{"distance"},
		),

		CurrentDistance: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cracker_current_distance",
				Help: "Edit distance currently being searched",
			},
		),

		OracleLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cracker_oracle_latency_seconds",
				Help:    "Oracle call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"oracle"},
		),

		OracleErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cracker_oracle_errors_total",
				Help: "Total number of failed oracle calls",
			},
			[]string{"oracle"},
		),

		ReadRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cracker_checker_read_retries_total",
				Help: "Total number of interrupted checker output reads that were retried",
			},
		),

		MemoHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cracker_memo_hits_total",
				Help: "Total number of candidates answered from the memo instead of the oracle",
			},
		),
	}
}

// RecordCandidates adds n tested candidates at the given distance
func (m *SearchMetrics) RecordCandidates(distance int, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.CandidatesTotal.WithLabelValues(strconv.Itoa(distance)).Add(float64(n))
}

// RecordComposition counts one composition enumerated at the given distance
func (m *SearchMetrics) RecordComposition(distance int) {
	if m == nil {
		return
	}
	m.CompositionsTotal.WithLabelValues(strconv.Itoa(distance)).Inc()
}

// SetDistance records the distance being searched
func (m *SearchMetrics) SetDistance(distance int) {
	if m == nil {
		return
	}
	m.CurrentDistance.Set(float64(distance))
}

// RecordOracleCall records an oracle call latency
func (m *SearchMetrics) RecordOracleCall(oracle string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.OracleLatency.WithLabelValues(oracle).Observe(duration.Seconds())
	if err != nil {
		m.OracleErrorsTotal.WithLabelValues(oracle).Inc()
	}
}

// RecordReadRetry counts an interrupted read that was retried
func (m *SearchMetrics) RecordReadRetry() {
	if m == nil {
		return
	}
	m.ReadRetriesTotal.Inc()
}

// RecordMemoHit counts a memo hit
func (m *SearchMetrics) RecordMemoHit() {
	if m == nil {
		return
	}
	m.MemoHitsTotal.Inc()
}

// Gatherer exposes the underlying registry
func (m *SearchMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format
func (m *SearchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
