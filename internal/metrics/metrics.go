package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation Pipeline Metrics
var (
	// LinesScored tracks how many text lines the scorer has evaluated
	LinesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiguard_lines_scored_total",
			Help: "Total text lines scored by the evaluation pipeline",
		},
	)

	// ScoreDistribution tracks the distribution of polarity scores
	ScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentiguard_score",
			Help:    "Distribution of polarity scores in [-1, 1]",
			Buckets: []float64{-1, -0.75, -0.5, -0.25, 0, 0.25, 0.5, 0.75, 1},
		},
	)

	// SweepDuration tracks evaluation pass latency in seconds
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentiguard_sweep_duration_seconds",
			Help:    "Evaluation pass duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// SweepErrors tracks evaluation passes aborted by persistence failures
	SweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiguard_sweep_errors_total",
			Help: "Evaluation passes aborted by errors",
		},
	)
)

// Alerting Metrics
var (
	// AlertsFired tracks alert events created on threshold crossing
	AlertsFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiguard_alerts_fired_total",
			Help: "Alert events created on threshold crossing",
		},
	)

	// AlertsDelivered tracks alerts confirmed delivered
	AlertsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiguard_alerts_delivered_total",
			Help: "Alert events confirmed delivered",
		},
	)

	// DeliveryFailures tracks failed delivery attempts by reason
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiguard_delivery_failures_total",
			Help: "Failed notification delivery attempts by reason",
		},
		[]string{"reason"},
	)

	// AlertsAbandoned tracks episodes given up after the attempt budget
	AlertsAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiguard_alerts_abandoned_total",
			Help: "Alert events abandoned after exhausting delivery attempts",
		},
	)
)

// Dashboard Metrics
var (
	// FeedClients tracks currently connected live-feed WebSocket clients
	FeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentiguard_feed_clients",
			Help: "Currently connected live-feed WebSocket clients",
		},
	)
)
