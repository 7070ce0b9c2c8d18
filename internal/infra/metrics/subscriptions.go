package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		activationsTotal,
		webhooksTotal,
	)
}

var (
	activationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_activations_total",
			Help: "Subscriptions activated from successful orders.",
		},
	)

	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_webhooks_total",
			Help: "Webhook deliveries by outcome (accepted/duplicate/unauthorized/ignored).",
		},
		[]string{"outcome"},
	)
)

func IncActivation()            { activationsTotal.Inc() }
func IncWebhook(outcome string) { webhooksTotal.WithLabelValues(norm(outcome)).Inc() }
