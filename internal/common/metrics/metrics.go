// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	HealthScoreComputed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deal_health_score",
			Help:    "Distribution of computed deal health scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	AtRiskDealsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "at_risk_deals_detected_total",
			Help: "Total number of deals that scored below the at-risk threshold",
		},
	)
)
