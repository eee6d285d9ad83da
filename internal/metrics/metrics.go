// Package metrics holds the Prometheus collectors for the confidant pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "confidant"

// Cache lookup outcomes.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupDrift = "drift"
)

// Metrics contains all confidant collectors.
type Metrics struct {
	CacheLookups       *prometheus.CounterVec
	CachePromotions    prometheus.Counter
	CacheEntries       prometheus.Gauge
	PersistFailures    *prometheus.CounterVec
	LedgerRecords      prometheus.Counter
	GenerationDuration *prometheus.HistogramVec
	Requests           *prometheus.CounterVec
	Degradations       *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Semantic cache lookups by outcome (hit, miss, drift)",
		}, []string{"outcome"}),

		CachePromotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "promotions_total",
			Help:      "Questions promoted into the vector index",
		}),

		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "index_entries",
			Help:      "Entries currently in the vector index",
		}),

		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "persist_failures_total",
			Help:      "Failed index snapshot or ledger writes",
		}, []string{"target"}),

		LedgerRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "increments_total",
			Help:      "Hit-count increments written to the ledger",
		}),

		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Language model completion latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),

		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "total",
			Help:      "Handled chat turns by transport and result code",
		}, []string{"transport", "code"}),

		Degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "degradations_total",
			Help:      "Non-fatal failures absorbed by a fallback, by kind",
		}, []string{"kind"}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Conversation sessions held in memory",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CacheLookups, m.CachePromotions, m.CacheEntries, m.PersistFailures,
		m.LedgerRecords, m.GenerationDuration, m.Requests, m.Degradations, m.ActiveSessions,
	}
}

// Lookup counts a cache lookup outcome.
func (m *Metrics) Lookup(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// Promoted counts a promotion and records the new index size.
func (m *Metrics) Promoted(entries int) {
	if m == nil {
		return
	}
	m.CachePromotions.Inc()
	m.CacheEntries.Set(float64(entries))
}

// IndexSize records the index size without counting a promotion.
func (m *Metrics) IndexSize(entries int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(entries))
}

// PersistFailed counts a failed write to target ("index" or "ledger").
func (m *Metrics) PersistFailed(target string) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(target).Inc()
}

// LedgerIncremented counts a ledger increment.
func (m *Metrics) LedgerIncremented() {
	if m == nil {
		return
	}
	m.LedgerRecords.Inc()
}

// ObserveGeneration records a completion's latency.
func (m *Metrics) ObserveGeneration(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.GenerationDuration.WithLabelValues(status).Observe(d.Seconds())
}

// Request counts a handled turn. code is empty on success.
func (m *Metrics) Request(transport, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.Requests.WithLabelValues(transport, code).Inc()
}

// Degraded counts a fallback taken for kind (translation, synthesis, detection, storage).
func (m *Metrics) Degraded(kind string) {
	if m == nil {
		return
	}
	m.Degradations.WithLabelValues(kind).Inc()
}

// Sessions records the number of live sessions.
func (m *Metrics) Sessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
