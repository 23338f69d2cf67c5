package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the pieces of choir that
// benefit from aggregate counters/histograms over and above the per-run
// Event Store trail: harness turns, worker outcomes, and RunWriter persist
// latency.
type Metrics struct {
	HarnessTurns       *prometheus.CounterVec
	HarnessStepSeconds *prometheus.HistogramVec
	WorkerOutcomes     *prometheus.CounterVec
	WriterPersistSecs  prometheus.Histogram
	WriterConflicts    prometheus.Counter
	EventStoreAppends  prometheus.Counter
	MemorySearches     *prometheus.HistogramVec
}

// NewMetrics registers a fresh set of collectors on reg. Callers typically
// pass prometheus.NewRegistry() in tests and prometheus.DefaultRegisterer in
// production so test runs don't collide on global registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HarnessTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "choir",
			Subsystem: "harness",
			Name:      "turns_total",
			Help:      "Number of harness turns executed, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		HarnessStepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "choir",
			Subsystem: "harness",
			Name:      "step_duration_seconds",
			Help:      "Duration of a single harness step (tool call, LLM call, transform, gate).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step_kind"}),
		WorkerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "choir",
			Subsystem: "worker",
			Name:      "outcomes_total",
			Help:      "Worker task outcomes, by worker type and result.",
		}, []string{"worker_type", "outcome"}),
		WriterPersistSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "choir",
			Subsystem: "runwriter",
			Name:      "persist_duration_seconds",
			Help:      "Time to durably persist a run document (temp-file write + rename).",
			Buckets:   prometheus.DefBuckets,
		}),
		WriterConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "choir",
			Subsystem: "runwriter",
			Name:      "conflicts_total",
			Help:      "Patch applications rejected due to a stale base revision.",
		}),
		EventStoreAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "choir",
			Subsystem: "eventstore",
			Name:      "appends_total",
			Help:      "Events appended to the event store.",
		}),
		MemorySearches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "choir",
			Subsystem: "memorystore",
			Name:      "search_duration_seconds",
			Help:      "KNN search latency, by collection.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection"}),
	}

	reg.MustRegister(
		m.HarnessTurns,
		m.HarnessStepSeconds,
		m.WorkerOutcomes,
		m.WriterPersistSecs,
		m.WriterConflicts,
		m.EventStoreAppends,
		m.MemorySearches,
	)

	return m
}
