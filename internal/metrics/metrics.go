// Package metrics Prometheus指标
package metrics

import (
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dsnworks"

var (
	// HTTP 请求指标
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// 业务指标
	WorksSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "works_submitted_total",
			Help:      "Total number of works stored after a successful upload",
		},
	)

	UploadsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_failed_total",
			Help:      "Total number of storage uploads that failed",
		},
	)

	// kind: views|downloads, path: atomic|fallback, status: ok|error
	CounterIncrements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_increments_total",
			Help:      "Counter increments by kind, code path and outcome",
		},
		[]string{"kind", "path", "status"},
	)

	// 消息队列指标
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of domain events handed to the broker",
		},
		[]string{"type", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		WorksSubmitted,
		UploadsFailed,
		CounterIncrements,
		EventsPublished,
	)
}

// RegisterDB 注册数据库连接池指标，只应调用一次
func RegisterDB(db *sql.DB, name string) error {
	return prometheus.Register(collectors.NewDBStatsCollector(db, name))
}

// Handler /metrics 处理函数
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RecordRequest 记录请求指标
func RecordRequest(method, route, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordIncrement 记录一次计数器自增
func RecordIncrement(kind, path string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	CounterIncrements.WithLabelValues(kind, path, status).Inc()
}
