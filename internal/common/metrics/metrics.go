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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	UnderwritingTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriting_tasks_total",
			Help: "Underwriting task outcomes by task id and final status",
		},
		[]string{"task_id", "status"},
	)

	UnderwritingTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "underwriting_task_duration_seconds",
			Help:    "Duration of automated underwriting task execution in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
		},
		[]string{"category"},
	)

	UnderwritingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriting_decisions_total",
			Help: "Underwriting decisions by recommendation",
		},
		[]string{"recommendation"},
	)

	UnderwritingRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "underwriting_runs_active",
			Help: "Number of workflow runs currently executing",
		},
	)
)
