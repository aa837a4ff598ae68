// Package metrics provides Prometheus collectors for the quote store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "quotebook"

// StoreMetrics holds Prometheus collectors describing the quote collection.
// A nil *StoreMetrics is valid and records nothing.
type StoreMetrics struct {
	added           prometheus.Counter
	deleted         prometheus.Counter
	size            prometheus.Gauge
	restoreFailures prometheus.Counter
	persistFailures prometheus.Counter
}

// NewStoreMetrics creates the store collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on /-/metrics.
func NewStoreMetrics(reg prometheus.Registerer) (*StoreMetrics, error) {
	m := &StoreMetrics{
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quotes_added_total",
			Help:      "Total number of quotes added.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quotes_deleted_total",
			Help:      "Total number of quotes deleted.",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "quotes",
			Help:      "Number of quotes currently in the collection.",
		}),
		restoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "restore_failures_total",
			Help:      "Number of restores that fell back to an empty collection.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "persist_failures_total",
			Help:      "Number of failed writes of the collection blob.",
		}),
	}

	for _, c := range []prometheus.Collector{m.added, m.deleted, m.size, m.restoreFailures, m.persistFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// QuoteAdded records a successful add and the new collection size.
func (m *StoreMetrics) QuoteAdded(size int) {
	if m == nil {
		return
	}

	m.added.Inc()
	m.size.Set(float64(size))
}

// QuoteDeleted records a successful delete and the new collection size.
func (m *StoreMetrics) QuoteDeleted(size int) {
	if m == nil {
		return
	}

	m.deleted.Inc()
	m.size.Set(float64(size))
}

// Restored records the size of a freshly restored collection.
func (m *StoreMetrics) Restored(size int) {
	if m == nil {
		return
	}

	m.size.Set(float64(size))
}

// RestoreFailed records a restore that fell back to an empty collection.
func (m *StoreMetrics) RestoreFailed() {
	if m == nil {
		return
	}

	m.restoreFailures.Inc()
	m.size.Set(0)
}

// PersistFailed records a failed blob write.
func (m *StoreMetrics) PersistFailed() {
	if m == nil {
		return
	}

	m.persistFailures.Inc()
}
