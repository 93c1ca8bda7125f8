// Package metrics 提供 Prometheus 指标集合与注册
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/issuetracking/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 通知投递计数，label: channel, kind, outcome
	NotificationsTotal *prometheus.CounterVec
	// 任务生命周期计数，label: kind, state
	JobsTotal *prometheus.CounterVec
	// 当前 WebSocket 连接数
	WebsocketConnections prometheus.Gauge
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracking",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tracking",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracking",
			Subsystem: serviceName,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel, event kind and outcome",
		}, []string{"channel", "kind", "outcome"}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracking",
			Subsystem: serviceName,
			Name:      "jobs_total",
			Help:      "Job lifecycle transitions by job kind and state",
		}, []string{"kind", "state"}),
		WebsocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tracking",
			Subsystem: serviceName,
			Name:      "websocket_connections",
			Help:      "Number of active websocket connections",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.NotificationsTotal,
		m.JobsTotal,
		m.WebsocketConnections,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordNotification 记录一次通知投递结果
func (m *Metrics) RecordNotification(channel, kind, outcome string) {
	m.NotificationsTotal.WithLabelValues(channel, kind, outcome).Inc()
}

// RecordJob 记录一次任务生命周期变迁
func (m *Metrics) RecordJob(kind, state string) {
	m.JobsTotal.WithLabelValues(kind, state).Inc()
}
