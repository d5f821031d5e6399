package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhooksReceived,
		webhooksRejected,
	)
}

var (
	webhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Inbound provider webhooks accepted for processing, by provider.",
		},
		[]string{"provider"},
	)

	webhooksRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_rejected_total",
			Help: "Inbound webhooks rejected before side effects, by provider and reason.",
		},
		[]string{"provider", "reason"},
	)
)

func IncWebhookReceived(provider string) {
	webhooksReceived.WithLabelValues(norm(provider)).Inc()
}

func IncWebhookRejected(provider, reason string) {
	webhooksRejected.WithLabelValues(norm(provider), norm(reason)).Inc()
}
