package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(promoEvaluationsTotal, promoRedemptionsTotal)
}

var (
	// result: ok|invalid or the eligibility reason
	promoEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepvio_promo_evaluations_total",
			Help: "Promo code evaluations by result.",
		},
		[]string{"result"},
	)

	promoRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepvio_promo_redemptions_total",
			Help: "Promo codes applied to redeemed orders.",
		},
		[]string{"code"},
	)
)

func IncPromoEvaluation(result string) {
	promoEvaluationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncPromoRedemption(code string) {
	promoRedemptionsTotal.WithLabelValues(norm(code)).Inc()
}
