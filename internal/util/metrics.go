package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	DiscountValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discount_validations_total",
		Help: "Total number of discount code validations",
	}, []string{"result"})

	InvoicesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_issued_total",
		Help: "Total number of invoices issued",
	})

	InvoicesPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_paid_total",
		Help: "Total number of invoices marked paid",
	})

	InvoicesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_cancelled_total",
		Help: "Total number of invoices cancelled",
	})

	InvoiceRenderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_render_latency_seconds",
		Help:    "Latency of invoice document rendering",
		Buckets: prometheus.DefBuckets,
	})

	InvoiceDocumentCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_document_cache_total",
		Help: "Rendered document cache lookups",
	}, []string{"result"})

	PaymentsReconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Total number of bank payments matched to orders",
	})

	PaymentsUnmatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_unmatched_total",
		Help: "Total number of bank payments with no matching order",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
