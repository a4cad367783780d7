// Package metrics exposes switchboard's Prometheus collectors and a small
// in-process session collector for the terminal dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_route_decisions_total",
			Help: "Routing decisions by final route and reason",
		},
		[]string{"route", "reason"},
	)

	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_backend_latency_seconds",
			Help:    "Generation latency per backend in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 60, 120},
		},
		[]string{"backend"},
	)

	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_backend_errors_total",
			Help: "Failed generation calls per backend",
		},
		[]string{"backend"},
	)

	RetrievalLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "switchboard_retrieval_latency_seconds",
			Help: "Knowledge store query latency in seconds",
		},
	)

	KnowledgeChunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_knowledge_chunks",
			Help: "Number of chunks in the knowledge store",
		},
	)

	IngestedFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_ingested_files_total",
			Help: "Files seen by ingestion, by outcome",
		},
		[]string{"outcome"},
	)

	MemoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_memory_operations_total",
			Help: "Conversation memory operations by op and status",
		},
		[]string{"op", "status"},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "switchboard_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_active_ws_sessions",
			Help: "Number of open websocket chat sessions",
		},
	)
)

// ObserveMemory counts one memory operation.
func ObserveMemory(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	MemoryOperations.WithLabelValues(op, status).Inc()
}
