package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказа.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated     prometheus.Counter
	paymentsCompleted prometheus.Counter
	paymentsFailed    prometheus.Counter
	statusChanges     *prometheus.CounterVec

	// Вебхуки по исходу обработки
	webhooksReceived *prometheus.CounterVec

	// Гистограмма обращений к платёжному шлюзу
	checkoutDuration prometheus.Histogram

	// Письма
	emailsSent   prometheus.Counter
	emailsFailed prometheus.Counter

	// Gauge для заказов, ожидающих оплату
	pendingPayments prometheus.Gauge
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_orders_created_total",
			Help: "Total number of orders created",
		}),
		paymentsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_payments_completed_total",
			Help: "Total number of payments confirmed",
		}),
		paymentsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_payments_failed_total",
			Help: "Total number of payments failed or expired",
		}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "commerce_order_status_changes_total",
			Help: "Total number of order status transitions",
		}, []string{"status"}),
		webhooksReceived: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "commerce_gateway_webhooks_total",
			Help: "Total number of gateway webhooks by outcome",
		}, []string{"outcome"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "commerce_checkout_session_duration_seconds",
			Help:    "Duration of checkout session creation calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		emailsSent: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_emails_sent_total",
			Help: "Total number of notification emails sent",
		}),
		emailsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "commerce_emails_failed_total",
			Help: "Total number of notification emails failed",
		}),
		pendingPayments: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "commerce_pending_payments",
			Help: "Number of orders currently awaiting payment",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
	m.pendingPayments.Inc()
}

// RecordPaymentCompleted увеличивает счётчик подтверждённых оплат.
func (m *OrderMetrics) RecordPaymentCompleted() {
	m.paymentsCompleted.Inc()
	m.pendingPayments.Dec()
}

// RecordPaymentFailed увеличивает счётчик неудачных оплат.
func (m *OrderMetrics) RecordPaymentFailed() {
	m.paymentsFailed.Inc()
	m.pendingPayments.Dec()
}

// RecordStatusChange увеличивает счётчик переходов по оси исполнения.
func (m *OrderMetrics) RecordStatusChange(status string) {
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordWebhook увеличивает счётчик вебхуков с меткой исхода.
func (m *OrderMetrics) RecordWebhook(outcome string) {
	m.webhooksReceived.WithLabelValues(outcome).Inc()
}

// RecordCheckoutDuration записывает длительность создания checkout session.
func (m *OrderMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordEmailSent увеличивает счётчик отправленных писем.
func (m *OrderMetrics) RecordEmailSent() {
	m.emailsSent.Inc()
}

// RecordEmailFailed увеличивает счётчик неотправленных писем.
func (m *OrderMetrics) RecordEmailFailed() {
	m.emailsFailed.Inc()
}
