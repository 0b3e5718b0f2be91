// Package metrics exposes Prometheus collectors for research sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_sessions_total",
			Help: "Total number of research sessions by final status",
		},
		[]string{"status"}, // finished, budget_exhausted, refused, failed
	)

	SessionRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quarry_session_rounds",
			Help:    "Evaluated rounds per session",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_state_transitions_total",
			Help: "Total number of session state entries",
		},
		[]string{"state"},
	)

	// Collaborator metrics
	SearchCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_search_calls_total",
			Help: "Total number of web search calls",
		},
		[]string{"outcome"}, // success, error
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_fetches_total",
			Help: "Total number of page fetches",
		},
		[]string{"outcome"}, // persisted, rejected, empty, error, blocked
	)

	ChunksPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_chunks_persisted_total",
			Help: "Total number of chunks submitted to the vector store",
		},
	)

	DocumentsRetrieved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_documents_retrieved_total",
			Help: "Total number of new evidence documents retrieved",
		},
	)

	OracleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_oracle_latency_seconds",
			Help:    "Oracle call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"op", "status"}, // status: success, error
	)
)

// ObserveOracle records the latency of an oracle call.
func ObserveOracle(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	OracleLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}
