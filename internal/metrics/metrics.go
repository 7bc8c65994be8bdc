// Package metrics exposes Prometheus collectors for the HTTP layer and the
// invoice workflow.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Failure reasons for invoice_create_failures_total.
const (
	ReasonValidation        = "validation"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonNotFound          = "not_found"
	ReasonForbidden         = "forbidden"
	ReasonConflict          = "conflict"
	ReasonLockTimeout       = "lock_timeout"
	ReasonUnknown           = "unknown"
)

type Metrics struct {
	httpDuration    *prometheus.HistogramVec
	invoicesCreated *prometheus.CounterVec
	createFailures  *prometheus.CounterVec
	stockLockWait   prometheus.Histogram
	jobsProcessed   *prometheus.CounterVec
	deadLetters     *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide collectors registered on the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New builds collectors on registerer. Tests pass a fresh prometheus.NewRegistry().
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trinity",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		invoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trinity",
			Name:      "invoices_created_total",
			Help:      "Invoices committed, by payment method and initial status.",
		}, []string{"payment_method", "status"}),
		createFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trinity",
			Name:      "invoice_create_failures_total",
			Help:      "Invoice creations rejected or rolled back, by reason.",
		}, []string{"reason"}),
		stockLockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trinity",
			Name:      "stock_lock_wait_seconds",
			Help:      "Time spent waiting for in-process product locks.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trinity",
			Name:      "jobs_processed_total",
			Help:      "Background jobs handled, by type and outcome.",
		}, []string{"type", "outcome"}),
		deadLetters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trinity",
			Name:      "dead_letter_jobs",
			Help:      "Jobs waiting on a dead letter list, by source queue.",
		}, []string{"queue"}),
	}
	registerer.MustRegister(m.httpDuration, m.invoicesCreated, m.createFailures, m.stockLockWait, m.jobsProcessed, m.deadLetters)
	return m
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) InvoiceCreated(paymentMethod, status string) {
	if m == nil {
		return
	}
	m.invoicesCreated.WithLabelValues(paymentMethod, status).Inc()
}

func (m *Metrics) InvoiceCreateFailed(reason string) {
	if m == nil {
		return
	}
	m.createFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveStockLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.stockLockWait.Observe(d.Seconds())
}

func (m *Metrics) JobProcessed(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(jobType, outcome).Inc()
}

func (m *Metrics) SetDeadLetterDepth(queue string, n int64) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(queue).Set(float64(n))
}
