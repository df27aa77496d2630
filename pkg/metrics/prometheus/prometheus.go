package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JoeShih716/go-mem-wallet/pkg/metrics"
)

// Collector 實作 metrics.Collector，輸出到 Prometheus
type Collector struct {
	registry *prometheus.Registry

	operations         *prometheus.CounterVec
	operationLatency   *prometheus.HistogramVec
	notifications      *prometheus.CounterVec
	notifyLatency      prometheus.Histogram
	notifyDropped      prometheus.Counter
	pendingWithdrawals prometheus.Gauge
}

// NewCollector 建立 Collector 並註冊到獨立的 registry
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of wallet operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Wallet operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of withdrawal notifications by result",
			},
			[]string{"result"},
		),
		notifyLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_duration_seconds",
				Help:      "Withdrawal notification latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		notifyDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_dropped_total",
				Help:      "Total number of notifications dropped because the queue was full",
			},
		),
		pendingWithdrawals: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_withdrawals",
				Help:      "Current number of pending withdrawal requests",
			},
		),
	}

	c.registry.MustRegister(
		c.operations,
		c.operationLatency,
		c.notifications,
		c.notifyLatency,
		c.notifyDropped,
		c.pendingWithdrawals,
	)
	return c
}

func (c *Collector) RecordOperation(operation, outcome string, duration time.Duration) {
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordNotification(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.notifications.WithLabelValues(result).Inc()
	c.notifyLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordNotificationDropped() {
	c.notifyDropped.Inc()
}

func (c *Collector) SetPendingWithdrawals(n int) {
	c.pendingWithdrawals.Set(float64(n))
}

// Handler 回傳 /metrics 的 http.Handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry 回傳底層 registry (測試用)
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

var _ metrics.Collector = (*Collector)(nil)
