package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	Finalizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_finalizations_total",
			Help: "Assessment finalizations by content type and outcome",
		},
		[]string{"content_type", "outcome"},
	)

	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "XP persisted to the gradebook, split into exercise and banked XP",
		},
		[]string{"kind"},
	)

	ReadTimeClamped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "read_time_clamped_total",
			Help: "Heartbeats whose delta was clamped to elapsed server time",
		},
	)

	AnalyticsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_total",
			Help: "Analytics events published by routing key and status",
		},
		[]string{"type", "status"},
	)

	FinalizeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xp_finalize_duration_seconds",
			Help:    "Time spent inside FinalizeAssessment",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"content_type"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(Finalizations)
	prometheus.MustRegister(XPAwarded)
	prometheus.MustRegister(ReadTimeClamped)
	prometheus.MustRegister(AnalyticsEvents)
	prometheus.MustRegister(FinalizeDuration)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
