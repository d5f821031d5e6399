package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsInitiated,
		paymentsConfirmed,
		paymentsFailed,
		paymentsRejected,
		paymentsReconciled,
	)
}

var (
	paymentsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Payment attempts started, by provider and result of initiation.",
		},
		[]string{"provider", "result"},
	)

	paymentsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_confirmed_total",
			Help: "Ledger transactions settled (pending -> completed), by provider.",
		},
		[]string{"provider"},
	)

	paymentsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_failed_total",
			Help: "Ledger transactions explicitly failed by the provider, by provider.",
		},
		[]string{"provider"},
	)

	paymentsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_rejected_total",
			Help: "Payments refused during manual review, by method.",
		},
		[]string{"method"},
	)

	paymentsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Stale pending transactions finalized by the reconciler, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
)

func IncPaymentInitiated(provider, result string) {
	paymentsInitiated.WithLabelValues(norm(provider), norm(result)).Inc()
}

func IncPaymentConfirmed(provider string) {
	paymentsConfirmed.WithLabelValues(norm(provider)).Inc()
}

func IncPaymentFailed(provider string) {
	paymentsFailed.WithLabelValues(norm(provider)).Inc()
}

func IncPaymentRejected(method string) {
	paymentsRejected.WithLabelValues(norm(method)).Inc()
}

func IncPaymentReconciled(provider, outcome string) {
	paymentsReconciled.WithLabelValues(norm(provider), norm(outcome)).Inc()
}
