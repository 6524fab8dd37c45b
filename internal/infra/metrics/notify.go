package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal) }

// status: sent|failed|dropped
var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "prepvio_notifications_total",
		Help: "Notification deliveries by sink and status.",
	},
	[]string{"sink", "status"},
)

func IncNotification(sink, status string) {
	notificationsTotal.WithLabelValues(norm(sink), norm(status)).Inc()
}
