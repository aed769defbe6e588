package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_recorded_total",
		Help: "Total number of sales recorded",
	}, []string{"payment_method"})

	SalesRevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_revenue_total",
		Help: "Sum of recorded sale totals",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of rejected sales",
	}, []string{"reason"})

	StockApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_apply_latency_seconds",
		Help:    "Latency of applying the stock changes of a sale",
		Buckets: prometheus.DefBuckets,
	})

	StockCompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_compensations_total",
		Help: "Stock decrements rolled back after a failed sale",
	}, []string{"result"})

	PartialApplicationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_partial_applications_total",
		Help: "Operations that left stock changes unreconciled",
	}, []string{"operation"})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_created_total",
		Help: "Total number of purchase orders created",
	})

	OrdersReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_received_total",
		Help: "Total number of purchase orders received",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_cancelled_total",
		Help: "Total number of purchase orders cancelled",
	})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_transitions_rejected_total",
		Help: "Purchase order status changes that were refused",
	}, []string{"reason"})

	StockAlertsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_alerts_opened_total",
		Help: "Low stock alerts recorded",
	})

	CashClosingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cash_closings_total",
		Help: "Total number of register closings",
	})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Login attempts by outcome",
	}, []string{"result"})

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
