package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор prometheus метрик сервиса
// Все методы Record* безопасны для nil получателя: при выключенных метриках передаётся nil
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DBQueryDuration    *prometheus.HistogramVec
	DBQueryErrorsTotal *prometheus.CounterVec
	DBOpenConnections  *prometheus.GaugeVec
	DBInUseConnections *prometheus.GaugeVec
	DBIdleConnections  *prometheus.GaugeVec
	DBWaitCount        *prometheus.GaugeVec

	CallbackOutcomesTotal   *prometheus.CounterVec
	PaymentTransitionsTotal *prometheus.CounterVec
	OutboxPublishedTotal    *prometheus.CounterVec
	ReconciledTotal         *prometheus.CounterVec
}

// New создает метрики и регистрирует их в default registry (его отдаёт promhttp.Handler)
func New(serviceName string) *Metrics {
	return NewWithRegisterer(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegisterer создает метрики в указанном registry
func NewWithRegisterer(serviceName string, reg prometheus.Registerer) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),

		DBQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "db_query_duration_seconds",
			Help:        "Database query duration in seconds",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		DBQueryErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "db_query_errors_total",
			Help:        "Total number of failed database queries",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		DBOpenConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_open_connections",
			Help:        "Number of established connections",
			ConstLabels: constLabels,
		}, []string{"db"}),
		DBInUseConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_in_use_connections",
			Help:        "Number of connections currently in use",
			ConstLabels: constLabels,
		}, []string{"db"}),
		DBIdleConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_idle_connections",
			Help:        "Number of idle connections",
			ConstLabels: constLabels,
		}, []string{"db"}),
		DBWaitCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_wait_count",
			Help:        "Total number of connections waited for",
			ConstLabels: constLabels,
		}, []string{"db"}),

		CallbackOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "settlement_callback_outcomes_total",
			Help:        "Gateway callbacks by internal outcome (accepted, ignored, rejected)",
			ConstLabels: constLabels,
		}, []string{"method", "outcome"}),
		PaymentTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "settlement_payment_transitions_total",
			Help:        "Effective payment status transitions",
			ConstLabels: constLabels,
		}, []string{"method", "from", "to"}),
		OutboxPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "settlement_outbox_published_total",
			Help:        "Outbox events handed to the broker",
			ConstLabels: constLabels,
		}, []string{"event_type", "result"}),
		ReconciledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "settlement_reconciled_total",
			Help:        "Settlement inconsistencies repaired by the reconciler",
			ConstLabels: constLabels,
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBQueryDuration,
		m.DBQueryErrorsTotal,
		m.DBOpenConnections,
		m.DBInUseConnections,
		m.DBIdleConnections,
		m.DBWaitCount,
		m.CallbackOutcomesTotal,
		m.PaymentTransitionsTotal,
		m.OutboxPublishedTotal,
		m.ReconciledTotal,
	)

	return m
}

// RecordCallbackOutcome учитывает результат обработки webhook
func (m *Metrics) RecordCallbackOutcome(method, outcome string) {
	if m == nil {
		return
	}
	m.CallbackOutcomesTotal.WithLabelValues(method, outcome).Inc()
}

// RecordPaymentTransition учитывает эффективный переход статуса платежа
func (m *Metrics) RecordPaymentTransition(method, from, to string) {
	if m == nil {
		return
	}
	m.PaymentTransitionsTotal.WithLabelValues(method, from, to).Inc()
}

// RecordOutboxPublish учитывает попытку публикации события
func (m *Metrics) RecordOutboxPublish(eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.OutboxPublishedTotal.WithLabelValues(eventType, result).Inc()
}

// RecordReconciled учитывает исправленное расхождение
func (m *Metrics) RecordReconciled(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReconciledTotal.WithLabelValues(kind).Add(float64(n))
}
