// Package metrics defines the Prometheus instruments exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_rate_limit_rejections_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	// Recommendations
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_recommendations_total",
			Help: "Recommendation requests served, by strategy",
		},
		[]string{"strategy"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency, by strategy",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"strategy"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_llm_requests_total",
			Help: "Completion calls to the language model, by outcome",
		},
		[]string{"outcome"},
	)

	MatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_match_outcomes_total",
			Help: "Proposed titles matched against the catalog, by kind",
		},
		[]string{"kind"},
	)

	// Prices
	PriceLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_price_lookups_total",
			Help: "Price resolutions, by the source that answered",
		},
		[]string{"source"},
	)

	PriceRefreshed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_price_refreshed_total",
			Help: "Price records refreshed by maintenance",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommender_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_circuit_breaker_requests_total",
			Help: "Calls through a circuit breaker, by result",
		},
		[]string{"name", "result"},
	)

	// Shares
	SharesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_shares_created_total",
			Help: "Shared recommendation sets created",
		},
	)

	ShareViews = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_share_views_total",
			Help: "Shared recommendation sets viewed",
		},
	)

	SharesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_shares_expired_total",
			Help: "Expired shares removed by cleanup",
		},
	)

	// Background work
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_maintenance_runs_total",
			Help: "Maintenance job runs, by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	TaskQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_task_queue_depth",
			Help: "Tasks waiting in the background queue",
		},
	)
)

// RecordRecommendation records one served recommendation request.
func RecordRecommendation(strategy string, d time.Duration) {
	Recommendations.WithLabelValues(strategy).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// RecordMaintenance records one maintenance job run.
func RecordMaintenance(job string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	MaintenanceRuns.WithLabelValues(job, outcome).Inc()
}
