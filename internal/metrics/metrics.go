// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinnect_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kinnect_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kinnect_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	OTPSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinnect_otp_sent_total",
			Help: "OTP codes issued, by actor role",
		},
		[]string{"role"},
	)

	OTPVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinnect_otp_verify_total",
			Help: "OTP verification attempts, by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	RequestTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinnect_request_transitions_total",
			Help: "Follow/message request state transitions",
		},
		[]string{"kind", "status"},
	)

	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinnect_messages_sent_total",
			Help: "Chat messages sent, by message type",
		},
		[]string{"type"},
	)

	SweptRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinnect_swept_requests_total",
			Help: "Expired requests handled by the sweeper",
		},
		[]string{"kind"},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
