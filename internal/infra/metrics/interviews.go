package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(interviewsConsumedTotal, interviewsRejectedTotal)
}

var (
	interviewsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepvio_interviews_consumed_total",
			Help: "Interview credits spent, by plan.",
		},
		[]string{"plan"},
	)

	// reason: requirespayment|needsupgrade|expired
	interviewsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepvio_interviews_rejected_total",
			Help: "Interview starts refused, by reason.",
		},
		[]string{"reason"},
	)
)

func IncInterviewConsumed(plan string) {
	interviewsConsumedTotal.WithLabelValues(norm(plan)).Inc()
}

func IncInterviewRejected(reason string) {
	interviewsRejectedTotal.WithLabelValues(norm(reason)).Inc()
}
