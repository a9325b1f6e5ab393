// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvestlink_predictions_total",
			Help: "Predictions served, by pipeline and outcome",
		},
		[]string{"pipeline", "outcome"}, // outcome: success, failure
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvestlink_prediction_duration_seconds",
			Help:    "Time spent inside a prediction pipeline",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline"},
	)

	PredictionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvestlink_prediction_errors_total",
			Help: "Failed predictions by error class",
		},
		[]string{"pipeline", "error_type"},
	)

	// Weather lookup metrics
	WeatherLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvestlink_weather_lookups_total",
			Help: "Weather lookups by outcome",
		},
		[]string{"outcome"}, // hit, miss, error, fallback, rejected
	)

	WeatherLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvestlink_weather_lookup_duration_seconds",
			Help:    "Latency of upstream weather calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvestlink_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP boundary metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvestlink_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	// History store metrics
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvestlink_history_writes_total",
			Help: "Prediction log writes by table and outcome",
		},
		[]string{"table", "outcome"},
	)
)
