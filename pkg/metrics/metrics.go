package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by flow (password|google|verify_email) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authhub_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"flow", "result"},
	)

	// ActiveSessions tracks sessions that have not been invalidated since process start.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authhub_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// OTPIssued counts issued one-time codes per purpose.
	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authhub_otp_issued_total",
			Help: "Total number of OTP codes issued",
		},
		[]string{"purpose"},
	)

	// OTPVerifications counts verification attempts per purpose and result (valid|invalid|expired|missing).
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authhub_otp_verifications_total",
			Help: "Total number of OTP verification attempts",
		},
		[]string{"purpose", "result"},
	)

	// QueueJobs counts processed background jobs by type and outcome (success|retry|failed).
	QueueJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authhub_queue_jobs_total",
			Help: "Total number of processed background jobs",
		},
		[]string{"type", "outcome"},
	)

	// RealtimeConnections tracks open websocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authhub_realtime_connections",
			Help: "Number of open websocket connections",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authhub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
