package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bodhgriha_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// SecondFactorChecks counts TOTP/recovery-code validations by method and outcome.
	SecondFactorChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bodhgriha_second_factor_checks_total",
			Help: "Total number of second-factor validations",
		},
		[]string{"method", "result"},
	)

	// ActiveSessions tracks sessions that are neither expired nor revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bodhgriha_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// TierDenials counts authorization rejections at protected boundaries.
	TierDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bodhgriha_tier_denials_total",
			Help: "Total number of privilege-tier authorization denials",
		},
		[]string{"reason"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bodhgriha_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
