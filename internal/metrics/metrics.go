package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 订阅状态取值，与 task.FeedStatus 一致
var feedStatuses = []string{"idle", "joining", "subscribed", "closed", "channel_error", "timed_out"}

// Metrics 私有注册表上的运行指标
// 所有方法对 nil 接收者安全，测试里可直接传 nil
type Metrics struct {
	registry *prometheus.Registry

	OrdersDetected *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	FeedReconnects prometheus.Counter
	FeedStatus     *prometheus.GaugeVec
	SyncRuns       *prometheus.CounterVec
}

// New 创建并注册全部指标
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		OrdersDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopfront_orders_detected_total",
				Help: "New orders detected, by detection path",
			},
			[]string{"source"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopfront_notifications_total",
				Help: "Alert signals emitted, by channel and result",
			},
			[]string{"channel", "result"},
		),
		FeedReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shopfront_feed_reconnects_total",
				Help: "Change feed reconnect attempts",
			},
		),
		FeedStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shopfront_feed_status",
				Help: "Current change feed subscription status (1 = active)",
			},
			[]string{"status"},
		),
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopfront_sync_total",
				Help: "Full refresh runs, by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.OrdersDetected,
		m.Notifications,
		m.FeedReconnects,
		m.FeedStatus,
		m.SyncRuns,
	)
	return m
}

// Registry 暴露注册表，供测试读取
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderDetected(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.OrdersDetected.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) Notification(channel, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.FeedReconnects.Inc()
}

// SetFeedStatus 当前状态置 1，其余置 0
func (m *Metrics) SetFeedStatus(status string) {
	if m == nil {
		return
	}
	for _, s := range feedStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.FeedStatus.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) Sync(result string) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(result).Inc()
}
