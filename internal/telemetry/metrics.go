package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration records request latency by method/route/status,
// observed by the httpserver Metrics middleware.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "aaq",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// QueriesTotal counts accepted/rejected queries by outcome.
var QueriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aaq",
		Subsystem: "query",
		Name:      "total",
		Help:      "Total number of search queries, labeled by outcome.",
	},
	[]string{"outcome"},
)

// QuotaRejectedTotal counts queries rejected for exceeding the daily quota.
var QuotaRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aaq",
		Subsystem: "quota",
		Name:      "rejected_total",
		Help:      "Total number of queries rejected for quota exhaustion.",
	},
	[]string{"workspace_id"},
)

// GuardrailRejectionsTotal counts guardrail rejections by reason.
var GuardrailRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aaq",
		Subsystem: "guardrail",
		Name:      "rejections_total",
		Help:      "Total number of guardrail pipeline rejections, labeled by reason.",
	},
	[]string{"reason"},
)

// EmbeddingCacheTotal counts embedding cache hits/misses.
var EmbeddingCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aaq",
		Subsystem: "embedding",
		Name:      "cache_total",
		Help:      "Total number of embedding cache lookups, labeled by result.",
	},
	[]string{"result"},
)

// RetrievalDuration records end-to-end retrieval latency (embed + search).
var RetrievalDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "aaq",
		Subsystem: "retrieval",
		Name:      "duration_seconds",
		Help:      "Retrieval engine latency in seconds (embed + similarity search).",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	},
)

// UrgencyDetectedTotal counts urgency-detector outcomes by strategy.
var UrgencyDetectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aaq",
		Subsystem: "urgency",
		Name:      "detected_total",
		Help:      "Total number of urgent-query detections, labeled by strategy.",
	},
	[]string{"strategy"},
)

// All returns every AAQ-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		QueriesTotal,
		QuotaRejectedTotal,
		GuardrailRejectionsTotal,
		EmbeddingCacheTotal,
		RetrievalDuration,
		UrgencyDetectedTotal,
	}
}
