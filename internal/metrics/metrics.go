// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation metrics
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmrec_recommend_requests_total",
			Help: "Total recommendation requests by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: "ok", "error", "cache_hit"
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crmrec_recommend_duration_seconds",
			Help:    "Recommendation latency by strategy",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	RecommendFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmrec_recommend_fallbacks_total",
			Help: "Fallbacks taken by the recommenders, by reason",
		},
		[]string{"strategy", "reason"},
	)

	// Training metrics
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmrec_training_runs_total",
			Help: "Model training runs by model and result",
		},
		[]string{"model", "result"}, // result: "published", "no_data", "error"
	)

	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crmrec_training_duration_seconds",
			Help:    "Model training duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		},
		[]string{"model"},
	)

	ModelVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crmrec_model_version",
			Help: "Latest published version per model",
		},
		[]string{"model"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crmrec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmrec_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmrec_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmrec_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crmrec_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmrec_messages_sent_total",
			Help: "Outbound customer messages by result",
		},
		[]string{"result"}, // "sent", "rejected", "error"
	)
)

// RecordRecommendation records one recommendation request.
func RecordRecommendation(strategy, outcome string, duration time.Duration) {
	RecommendRequests.WithLabelValues(strategy, outcome).Inc()
	RecommendDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordFallback counts a fallback taken by a recommender.
func RecordFallback(strategy, reason string) {
	RecommendFallbacks.WithLabelValues(strategy, reason).Inc()
}

// RecordTraining records one model training run.
func RecordTraining(model, result string, duration time.Duration) {
	TrainingRuns.WithLabelValues(model, result).Inc()
	TrainingDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// SetModelVersion publishes the latest version of a model.
func SetModelVersion(model string, version int64) {
	ModelVersion.WithLabelValues(model).Set(float64(version))
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMessage counts an outbound message attempt.
func RecordMessage(result string) {
	MessagesSent.WithLabelValues(result).Inc()
}
