package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		checkoutsTotal,
		reconcilesTotal,
		reconcileErrorsTotal,
		revenuePaiseTotal,
		refundsTotal,
	)
}

var (
	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_checkouts_total",
			Help: "Checkout attempts by resulting order status.",
		},
		[]string{"status"},
	)

	reconcilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciles_total",
			Help: "Reconciliation outcomes by resulting order status.",
		},
		[]string{"status"},
	)

	reconcileErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_reconcile_errors_total",
			Help: "Reconciliation attempts that failed at the provider.",
		},
	)

	revenuePaiseTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_revenue_paise_total",
			Help: "Total settled value of successful orders, in paise.",
		},
	)

	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_refunds_total",
			Help: "Refund initiations by provider state.",
		},
		[]string{"state"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncCheckout(status string)  { checkoutsTotal.WithLabelValues(norm(status)).Inc() }
func IncReconcile(status string) { reconcilesTotal.WithLabelValues(norm(status)).Inc() }
func IncReconcileError()         { reconcileErrorsTotal.Inc() }
func AddRevenue(paise int64)     { revenuePaiseTotal.Add(float64(paise)) }
func IncRefund(state string)     { refundsTotal.WithLabelValues(norm(state)).Inc() }
