// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the datafrage service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for code-generation
// latencies, ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// ExecBuckets covers sandbox execution latencies up to the usual
// wall-clock budget.
var ExecBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafrage_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datafrage_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// QueriesTotal counts processed queries by terminal status.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafrage_queries_total",
			Help: "Processed queries",
		},
		[]string{"status"},
	)

	// QueryAttempts records sandbox attempts consumed per query,
	// including the final one.
	QueryAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datafrage_query_attempts",
			Help:    "Sandbox attempts per query",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// GenerationRequestsTotal counts calls to the code-generation
	// collaborator by outcome.
	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafrage_generation_requests_total",
			Help: "Code generation requests",
		},
		[]string{"status"},
	)

	// GenerationLatency records code-generation latency in seconds.
	GenerationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datafrage_generation_latency_seconds",
			Help:    "Code generation latency",
			Buckets: LLMBuckets,
		},
	)

	// ExecutionsTotal counts sandbox executions by outcome: "success" or
	// the classified error kind.
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafrage_executions_total",
			Help: "Sandbox executions",
		},
		[]string{"outcome"},
	)

	// ExecutionLatency records sandbox execution latency in seconds.
	ExecutionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datafrage_execution_latency_seconds",
			Help:    "Sandbox execution latency",
			Buckets: ExecBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		QueriesTotal,
		QueryAttempts,
		GenerationRequestsTotal,
		GenerationLatency,
		ExecutionsTotal,
		ExecutionLatency,
	)
}
