// Package metrics exposes monitoring counters over a Prometheus endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CheckResultCounter tracks check executions, labeled by task, check
	// and resulting status.
	CheckResultCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_health_monitor_check_result_total",
			Help: "Total number of check executions, labeled by task, check and status",
		},
		[]string{"task", "check", "status"},
	)

	// NotificationCounter tracks dispatched notifications, labeled by task
	// and notification kind (alert or recovery).
	NotificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_health_monitor_notification_sent_total",
			Help: "Total number of notifications delivered, labeled by task and kind",
		},
		[]string{"task", "kind"},
	)

	// TaskHealthyGauge reports the latest per-task health verdict (1
	// healthy, 0 unhealthy).
	TaskHealthyGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "task_health_monitor_task_healthy",
			Help: "Latest health verdict per task (1 healthy, 0 unhealthy)",
		},
		[]string{"task"},
	)
)
