package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionActivations,
		subscriptionLifecycle,
		otpIssued,
		otpVerifications,
	)
}

var (
	subscriptionActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_activations_total",
			Help: "Subscriptions activated after a confirmed payment.",
		},
		[]string{"result"},
	)

	subscriptionLifecycle = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_lifecycle_total",
			Help: "Administrative lifecycle toggles, by target status.",
		},
		[]string{"status"},
	)

	otpIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "OTP challenges generated for mobile-money confirmation.",
		},
	)

	otpVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "OTP verification attempts, by result (ok/mismatch/expired).",
		},
		[]string{"result"},
	)
)

func IncSubscriptionActivation(result string) {
	subscriptionActivations.WithLabelValues(norm(result)).Inc()
}

func IncSubscriptionLifecycle(status string) {
	subscriptionLifecycle.WithLabelValues(norm(status)).Inc()
}

func IncOTPIssued() { otpIssued.Inc() }

func IncOTPVerification(result string) {
	otpVerifications.WithLabelValues(norm(result)).Inc()
}
