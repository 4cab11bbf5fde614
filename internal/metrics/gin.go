// Package metrics 暴露 HTTP 与业务层 Prometheus 指标。
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "placement"

	// unmatchedRoute 用于未命中任何路由的请求，避免把任意 URL 写成标签值。
	unmatchedRoute = "unmatched"
)

var httpLabels = []string{"method", "route", "status"}

var (
	registerOnce sync.Once

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP 请求耗时分布（秒）。",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		httpLabels,
	)

	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP 请求总数。",
		},
		httpLabels,
	)

	responseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "响应体大小，CSV 导出与列表接口的主要观测项。",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"route"},
	)

	requestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "当前正在处理的 HTTP 请求数量。",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		requestDuration,
		requestTotal,
		responseBytes,
		requestsInFlight,
		applicationOperations,
		loginAttempts,
		exportRows,
	}
}

// Register 将全部采集器注册到默认 Registry，可重复调用。
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(collectors()...)
	})
}

// GinMiddleware 记录每个请求的耗时、次数与响应大小，路由取 Gin 的模板路径。
func GinMiddleware() gin.HandlerFunc {
	Register()

	return func(c *gin.Context) {
		start := time.Now()
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := strconv.Itoa(c.Writer.Status())

		requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		requestTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		if size := c.Writer.Size(); size > 0 {
			responseBytes.WithLabelValues(route).Observe(float64(size))
		}
	}
}
