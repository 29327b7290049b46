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

	NotificationDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "returns_notification_dispatches_total",
			Help: "Goods-return notification dispatches by type and outcome",
		},
		[]string{"notification_type", "outcome"},
	)

	NotificationChannelAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "returns_notification_channel_attempts_total",
			Help: "Channel sends attempted by channel and result",
		},
		[]string{"channel", "result"},
	)

	SMSRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "returns_notification_sms_rate_limited_total",
			Help: "SMS sends rejected by the per-reseller limiter",
		},
		[]string{"reseller_id"},
	)

	ReferenceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "returns_reference_cache_lookups_total",
			Help: "Reference cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// Channel labels.
const (
	ChannelEmployeeEmail = "employee_email"
	ChannelClientEmail   = "client_email"
	ChannelClientSMS     = "client_sms"
)
