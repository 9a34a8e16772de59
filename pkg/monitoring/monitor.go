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

	// PatternDetections 各检测方法的运行计数，status 取 ok / insufficient / error
	PatternDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_detections_total",
			Help: "Total number of pattern detector runs",
		},
		[]string{"type", "status"},
	)

	DetectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pattern_detection_duration_seconds",
			Help:    "Duration of a single pattern detector run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"type"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(PatternDetections)
	prometheus.MustRegister(DetectionDuration)
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

// ObserveDetection 记录单次检测方法的耗时与结果
func ObserveDetection(patternType, status string, duration time.Duration) {
	PatternDetections.WithLabelValues(patternType, status).Inc()
	DetectionDuration.WithLabelValues(patternType).Observe(duration.Seconds())
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
