package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_requests_total",
		Help: "The total number of requests processed",
	}, []string{"method", "status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_auth_failures_total",
		Help: "Total auth guard rejections",
	}, []string{"reason"})

	LogEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authgate_log_evictions_total",
		Help: "Request log entries evicted from the in-memory index",
	})
)
