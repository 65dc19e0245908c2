// Package metrics exposes Prometheus instrumentation for the prediction service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// predictionsTotal counts predictions by outcome ("ok", "cached", or an error code)
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bd4predict_predictions_total",
		Help: "Total predictions by outcome",
	}, []string{"outcome"})

	// predictionDuration tracks end-to-end prediction latency
	predictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bd4predict_prediction_duration_seconds",
		Help:    "Prediction duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// declineProbability tracks the distribution of reported decline probabilities
	declineProbability = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bd4predict_decline_probability",
		Help:    "Reported probability of a clinically relevant decline",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	// intervalWidth tracks the width of the reported confidence interval
	intervalWidth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bd4predict_interval_width",
		Help:    "Width of the reported prediction interval in score points",
		Buckets: []float64{5, 10, 20, 30, 40, 60, 80, 100},
	})

	// cacheLookups counts cache lookups by tier and result
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bd4predict_cache_lookups_total",
		Help: "Prediction cache lookups by tier and result",
	}, []string{"tier", "result"})

	// httpRequests counts HTTP requests by method, route and status
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bd4predict_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// httpDuration tracks HTTP request latency by route
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bd4predict_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// outcomesRecorded counts observed outcomes by interval coverage
	outcomesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bd4predict_outcomes_recorded_total",
		Help: "Observed outcomes recorded, by whether the interval covered them",
	}, []string{"covered"})
)

// ObservePrediction records one prediction attempt.
func ObservePrediction(outcome string, elapsed time.Duration) {
	predictionsTotal.WithLabelValues(outcome).Inc()
	predictionDuration.Observe(elapsed.Seconds())
}

// ObserveResult records the calibrated quantities of a successful prediction.
func ObserveResult(decline, lower, upper float64) {
	declineProbability.Observe(decline)
	intervalWidth.Observe(upper - lower)
}

// CacheLookup records a cache hit or miss for a tier.
func CacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(tier, result).Inc()
}

// ObserveHTTP records one served HTTP request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// OutcomeRecorded records an observed follow-up outcome.
func OutcomeRecorded(covered bool) {
	outcomesRecorded.WithLabelValues(strconv.FormatBool(covered)).Inc()
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
