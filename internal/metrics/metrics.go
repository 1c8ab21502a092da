// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_http_requests_total",
			Help: "Total number of HTTP requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyhub_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_tasks_total",
			Help: "Detached side-effect tasks by name and outcome",
		},
		[]string{"task", "outcome"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_rate_limit_rejections_total",
			Help: "Requests rejected by a rate limit policy",
		},
		[]string{"policy"},
	)
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDropped = "dropped"
)

// RecordRequest records one served request. route is the chi pattern, never the raw path.
func RecordRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func RecordTask(task, outcome string) {
	TasksTotal.WithLabelValues(task, outcome).Inc()
}

func RecordRateLimited(policy string) {
	RateLimitRejections.WithLabelValues(policy).Inc()
}
