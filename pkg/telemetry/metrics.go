// Package telemetry exposes Prometheus primitives for the billing engine.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module provides the shared metrics registry.
var Module = fx.Provide(NewMetrics)

// Metrics groups the engine's Prometheus collectors.
type Metrics struct {
	apiRequests        *prometheus.CounterVec
	apiDuration        *prometheus.HistogramVec
	calculations       *prometheus.CounterVec
	commissionAmount   *prometheus.HistogramVec
	payoutBatches      *prometheus.CounterVec
	payoutPartners     *prometheus.CounterVec
	invoiceEvents      *prometheus.CounterVec
	invoiceAmount      prometheus.Histogram
	notificationEvents *prometheus.CounterVec
}

// NewMetrics registers and returns the engine metrics.
func NewMetrics() *Metrics {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voyara_api_requests_total",
		Help: "API requests by method, route, and status.",
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voyara_api_duration_seconds",
		Help:    "API request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voyara_commission_calculations_total",
		Help: "Commission calculations by commission type and outcome.",
	}, []string{"type", "outcome"})

	commissionAmount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voyara_commission_amount",
		Help:    "Commission amount distribution in major units.",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	}, []string{"type"})

	payoutBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voyara_payout_batches_total",
		Help: "Payout batch runs by outcome.",
	}, []string{"outcome"})

	payoutPartners := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voyara_payout_partners_total",
		Help: "Per-partner payout outcomes within batches.",
	}, []string{"outcome"})

	invoiceEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voyara_invoice_events_total",
		Help: "Invoice lifecycle events by kind.",
	}, []string{"event"})

	invoiceAmount := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "voyara_invoice_amount",
		Help:    "Invoice total distribution in major units.",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 20000},
	})

	notificationEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voyara_notification_events_total",
		Help: "Notification dispatches by event and status.",
	}, []string{"event", "status"})

	prometheus.MustRegister(
		apiRequests,
		apiDuration,
		calculations,
		commissionAmount,
		payoutBatches,
		payoutPartners,
		invoiceEvents,
		invoiceAmount,
		notificationEvents,
	)

	return &Metrics{
		apiRequests:        apiRequests,
		apiDuration:        apiDuration,
		calculations:       calculations,
		commissionAmount:   commissionAmount,
		payoutBatches:      payoutBatches,
		payoutPartners:     payoutPartners,
		invoiceEvents:      invoiceEvents,
		invoiceAmount:      invoiceAmount,
		notificationEvents: notificationEvents,
	}
}

// ObserveAPIRequest records one API request and its latency.
func (m *Metrics) ObserveAPIRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCalculation records a commission calculation outcome.
func (m *Metrics) ObserveCalculation(commissionType, outcome string, amount float64) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(commissionType, outcome).Inc()
	if outcome == "ok" {
		m.commissionAmount.WithLabelValues(commissionType).Observe(amount)
	}
}

// ObservePayoutBatch records a batch run outcome.
func (m *Metrics) ObservePayoutBatch(outcome string) {
	if m == nil {
		return
	}
	m.payoutBatches.WithLabelValues(outcome).Inc()
}

// ObservePayoutPartner records a per-partner outcome inside a batch.
func (m *Metrics) ObservePayoutPartner(outcome string) {
	if m == nil {
		return
	}
	m.payoutPartners.WithLabelValues(outcome).Inc()
}

// ObserveInvoiceEvent records an invoice lifecycle event.
func (m *Metrics) ObserveInvoiceEvent(event string, amount float64) {
	if m == nil {
		return
	}
	m.invoiceEvents.WithLabelValues(event).Inc()
	if event == "created" {
		m.invoiceAmount.Observe(amount)
	}
}

// ObserveNotification records a dispatch attempt.
func (m *Metrics) ObserveNotification(event, status string) {
	if m == nil {
		return
	}
	m.notificationEvents.WithLabelValues(event, status).Inc()
}
