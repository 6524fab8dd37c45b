package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentVerifyRequests,
		paymentVerifyDuration,
		paymentReconcileTotal,
	)
}

var (
	// status: pending|success|gateway_timeout|gateway_error
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepvio_payments_total",
			Help: "Payment orders by status.",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepvio_payments_revenue_total",
			Help: "The total monetary value of redeemed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// result: ok|fail
	// reason (fail only): bad_request|bad_signature|not_found|unknown
	paymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepvio_payment_verify_requests_total",
			Help: "Count of payment verifications by result and reason.",
		},
		[]string{"result", "reason"},
	)

	paymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prepvio_payment_verify_duration_seconds",
			Help:    "Duration of payment verification in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// result: redeemed|pending|error
	paymentReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepvio_payment_reconcile_total",
			Help: "Pending orders checked by the reconciler, by outcome.",
		},
		[]string{"result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount float64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(amount)
}

func ObservePaymentVerify(result, reason string, d time.Duration) {
	paymentVerifyRequests.WithLabelValues(norm(result), norm(reason)).Inc()
	paymentVerifyDuration.WithLabelValues(norm(result)).Observe(d.Seconds())
}

func IncReconcile(result string) {
	paymentReconcileTotal.WithLabelValues(norm(result)).Inc()
}
