package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 业务与HTTP指标
type Metrics struct {
	registry *prometheus.Registry

	PaymentCallbacks *prometheus.CounterVec
	DownstreamOrders *prometheus.CounterVec
	Shipments        *prometheus.CounterVec
	ReconcileSweeps  *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New 创建并注册指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		PaymentCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plg",
			Name:      "payment_callbacks_total",
			Help:      "ECPay payment callbacks by outcome.",
		}, []string{"outcome"}),
		DownstreamOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plg",
			Name:      "shopify_orders_total",
			Help:      "Shopify order creation attempts by result.",
		}, []string{"result"}),
		Shipments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plg",
			Name:      "logistics_shipments_total",
			Help:      "ECPay CVS shipment creation by result.",
		}, []string{"result"}),
		ReconcileSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plg",
			Name:      "reconcile_items_total",
			Help:      "Pending transactions handled by the reconcile job.",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plg",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PaymentCallbacks, m.DownstreamOrders, m.Shipments, m.ReconcileSweeps, m.HTTPDuration,
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CallbackOutcome 记录付款回调结果
func (m *Metrics) CallbackOutcome(outcome string) {
	if m == nil {
		return
	}
	m.PaymentCallbacks.WithLabelValues(outcome).Inc()
}

// DownstreamOrder 记录Shopify建单结果
func (m *Metrics) DownstreamOrder(result string) {
	if m == nil {
		return
	}
	m.DownstreamOrders.WithLabelValues(result).Inc()
}

// Shipment 记录物流单建立结果
func (m *Metrics) Shipment(result string) {
	if m == nil {
		return
	}
	m.Shipments.WithLabelValues(result).Inc()
}

// ReconcileItem 记录对账任务处理结果
func (m *Metrics) ReconcileItem(result string) {
	if m == nil {
		return
	}
	m.ReconcileSweeps.WithLabelValues(result).Inc()
}
