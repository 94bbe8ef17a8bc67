// Metrics wiring, grounded on the teacher's use of
// github.com/prometheus/client_golang throughout its server package for
// request/latency instrumentation. Here the same library instruments
// transactions and documents instead of HTTP requests.
package sencillo

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRegisterer is the interface an Options.PrometheusRegisterer
// must satisfy; re-exported so callers don't need to import the
// prometheus package themselves just to configure an Engine.
type PrometheusRegisterer = prometheus.Registerer

// metricsSet holds the engine's collectors. When no registerer is
// supplied the collectors still exist and are updated, they are simply
// never exposed to a scrape endpoint.
type metricsSet struct {
	transactions *prometheus.CounterVec
	rollbacks    prometheus.Counter
	documents    prometheus.Gauge
	evictions    prometheus.Counter
}

func newMetricsSet(reg PrometheusRegisterer) *metricsSet {
	m := &metricsSet{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sencillo_transactions_total",
			Help: "Transactions run, partitioned by outcome.",
		}, []string{"outcome"}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sencillo_rollbacks_total",
			Help: "Transactions that rolled back.",
		}),
		documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sencillo_documents_resident",
			Help: "Live documents across all resident collections.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sencillo_lru_evictions_total",
			Help: "Resident units evicted by the LRU admission cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transactions, m.rollbacks, m.documents, m.evictions)
	}
	return m
}

func (m *metricsSet) observeCommit() {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues("commit").Inc()
}

func (m *metricsSet) observeRollback() {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues("rollback").Inc()
	m.rollbacks.Inc()
}

func (m *metricsSet) observeEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *metricsSet) setResidentDocuments(n int) {
	if m == nil {
		return
	}
	m.documents.Set(float64(n))
}

// Metrics is a point-in-time snapshot of the engine's counters, for
// callers that want the numbers without wiring up a Prometheus scrape
// endpoint (spec supplement: metrics introspection).
type Metrics struct {
	Commits      float64
	Rollbacks    float64
	Evictions    float64
	ResidentDocs float64
}

// Snapshot returns the engine's current metric values.
func (e *Engine) Snapshot() Metrics {
	var commits, rollbacks, evictions, docs float64
	if m := e.metrics; m != nil {
		commits = counterValue(m.transactions.WithLabelValues("commit"))
		rollbacks = counterValue(m.rollbacks)
		evictions = counterValue(m.evictions)
		docs = gaugeValue(m.documents)
	}
	return Metrics{Commits: commits, Rollbacks: rollbacks, Evictions: evictions, ResidentDocs: docs}
}

func counterValue(c prometheus.Counter) float64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return pb.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var pb dto.Metric
	if err := g.Write(&pb); err != nil {
		return 0
	}
	return pb.GetGauge().GetValue()
}
