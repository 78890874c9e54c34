// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
// 每个实例持有独立的 Registry，方法对 nil 接收者安全
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	billsCreatedTotal       *prometheus.CounterVec
	billNotificationsTotal  *prometheus.CounterVec
	billAmountTotal         prometheus.Counter
	paymentsTotal           *prometheus.CounterVec
	meterReadingsTotal      *prometheus.CounterVec
	bindingsTotal           *prometheus.CounterVec
	mqttMessagesTotal       *prometheus.CounterVec
	scheduledJobRunsTotal   *prometheus.CounterVec
	activeBindings          prometheus.Gauge
}

// Init 初始化指标收集器
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rental"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		httpRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		billsCreatedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_created_total",
			Help:      "Bill creation attempts by result",
		}, []string{"result"}),
		billNotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_notifications_total",
			Help:      "Bill notifications by channel and status",
		}, []string{"channel", "status"}),
		billAmountTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_amount_total",
			Help:      "Sum of billed totals including VAT",
		}),
		paymentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment slip and confirmation events",
		}, []string{"event"}),
		meterReadingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meter_readings_total",
			Help:      "Meter readings by source and result",
		}, []string{"source", "result"}),
		bindingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_bindings_total",
			Help:      "Lock-contract binding changes by action",
		}, []string{"action"}),
		mqttMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_total",
			Help:      "Total number of MQTT messages",
		}, []string{"topic", "direction"}),
		scheduledJobRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_job_runs_total",
			Help:      "Scheduled job runs by job and result",
		}, []string{"job", "result"}),
		activeBindings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_bindings",
			Help:      "Number of active lock-contract bindings",
		}),
	}
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过 metrics 端点本身
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 Prometheus HTTP 处理器
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordBillCreated 记录账单创建结果，成功时累加金额
func (m *Metrics) RecordBillCreated(result string, total float64) {
	if m == nil {
		return
	}
	m.billsCreatedTotal.WithLabelValues(result).Inc()
	if result == "created" && total > 0 {
		m.billAmountTotal.Add(total)
	}
}

// RecordNotification 记录通知结果
func (m *Metrics) RecordNotification(channel, status string) {
	if m == nil {
		return
	}
	m.billNotificationsTotal.WithLabelValues(channel, status).Inc()
}

// RecordPayment 记录支付事件（slip_uploaded, confirmed）
func (m *Metrics) RecordPayment(event string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(event).Inc()
}

// RecordMeterReading 记录抄表
func (m *Metrics) RecordMeterReading(source, result string) {
	if m == nil {
		return
	}
	m.meterReadingsTotal.WithLabelValues(source, result).Inc()
}

// RecordBinding 记录绑定变更（bind, cancel, expire）
func (m *Metrics) RecordBinding(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bindingsTotal.WithLabelValues(action).Add(float64(n))
}

// RecordMQTTMessage 记录 MQTT 消息
func (m *Metrics) RecordMQTTMessage(topic, direction string) {
	if m == nil {
		return
	}
	m.mqttMessagesTotal.WithLabelValues(topic, direction).Inc()
}

// RecordJobRun 记录定时任务执行
func (m *Metrics) RecordJobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.scheduledJobRunsTotal.WithLabelValues(job, result).Inc()
}

// SetActiveBindings 设置当前有效绑定数
func (m *Metrics) SetActiveBindings(n int64) {
	if m == nil {
		return
	}
	m.activeBindings.Set(float64(n))
}
