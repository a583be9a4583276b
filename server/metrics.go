package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsCollector struct {
	httpRequests    *prometheus.CounterVec
	moveLatency     prometheus.Histogram
	activityDropped prometheus.Counter
	webhookFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metricsCollector {
	m := &metricsCollector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		moveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskboard_move_duration_seconds",
			Help:    "Latency of list and card reorder operations.",
			Buckets: prometheus.DefBuckets,
		}),
		activityDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_activity_dropped_total",
			Help: "Activity events dropped because the notifier queue was full.",
		}),
		webhookFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_webhook_failures_total",
			Help: "Failed outbound webhook deliveries.",
		}),
	}
	reg.MustRegister(m.httpRequests, m.moveLatency, m.activityDropped, m.webhookFailures)
	return m
}

func (m *metricsCollector) recordRequest(method string, status int) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *metricsCollector) observeMove(d time.Duration) {
	m.moveLatency.Observe(d.Seconds())
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
