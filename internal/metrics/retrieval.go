package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	FacetLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expomatch",
			Name:      "facet_lookups_total",
			Help:      "Total number of per-facet vector lookups",
		},
		[]string{"table", "mode", "status"},
	)

	FacetLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "expomatch",
			Name:      "facet_lookup_duration_seconds",
			Help:      "Per-facet vector lookup duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"table", "mode"},
	)

	RetryTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expomatch",
			Name:      "retry_transitions_total",
			Help:      "Total retry state transitions by target stage",
		},
		[]string{"stage"},
	)

	PipelineOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expomatch",
			Name:      "pipeline_outcomes_total",
			Help:      "Completed query pipelines by outcome",
		},
		[]string{"table", "status"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers Prometheus retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(FacetLookupsTotal)
	prometheus.MustRegister(FacetLookupDuration)
	prometheus.MustRegister(RetryTransitionsTotal)
	prometheus.MustRegister(PipelineOutcomesTotal)
	retrievalMetricsRegistered = true
}
