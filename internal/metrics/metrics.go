package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of open database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Business metrics
	contactSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Total number of contact form submissions",
		},
		[]string{"result"}, // accepted, rejected, failed
	)

	notificationJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_jobs_total",
			Help: "Notification jobs by outcome",
		},
		[]string{"outcome"}, // enqueued, enqueue_failed, sent, retry, dead
	)

	responseCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_requests_total",
			Help: "Response cache decisions",
		},
		[]string{"result"}, // hit, miss, stored, discarded, bypass, error
	)

	cacheWarmItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_warm_items_total",
			Help: "Cache warming items by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// Middleware records request count and latency per route name
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordSubmission records the outcome of a contact form submission
func RecordSubmission(result string) {
	contactSubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordNotification records a notification job outcome
func RecordNotification(outcome string) {
	notificationJobsTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheResult records a response cache decision
func RecordCacheResult(result string) {
	responseCacheTotal.WithLabelValues(result).Inc()
}

// RecordWarmItem records one cache warming step
func RecordWarmItem(kind string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	cacheWarmItemsTotal.WithLabelValues(kind, result).Inc()
}

// UpdateDBConnections copies the pool stats into gauges
func UpdateDBConnections(stats sql.DBStats) {
	dbConnectionsOpen.Set(float64(stats.OpenConnections))
	dbConnectionsIdle.Set(float64(stats.Idle))
}
