// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoringEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_evaluations_total",
			Help: "Total number of scoring evaluations by decision",
		},
		[]string{"decision"},
	)

	PipelineRecommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_recommendations_total",
			Help: "Total number of stage recommendations emitted by priority",
		},
		[]string{"priority"},
	)

	PipelineApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_applied_total",
			Help: "Total number of applied pipeline mutations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Total number of alert delivery attempts by channel, kind and outcome",
		},
		[]string{"channel", "kind", "outcome"},
	)

	DeliveryRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "delivery_run_duration_seconds",
			Help: "Duration of delivery job runs in seconds",
		},
	)
)
