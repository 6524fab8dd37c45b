package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerPoolConns, ledgerPoolSaturation) }

var (
	// state: acquired|idle|max
	ledgerPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prepvio_ledger_db_connections",
			Help: "Connections in the ledger's Postgres pool by state.",
		},
		[]string{"state"},
	)

	ledgerPoolSaturation = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prepvio_ledger_db_pool_saturation",
			Help: "Acquired connections as a fraction of the pool maximum.",
		},
	)
)

// SetLedgerPoolStats records one pool snapshot.
func SetLedgerPoolStats(acquired, idle, maxConns int32) {
	ledgerPoolConns.WithLabelValues("acquired").Set(float64(acquired))
	ledgerPoolConns.WithLabelValues("idle").Set(float64(idle))
	ledgerPoolConns.WithLabelValues("max").Set(float64(maxConns))
	if maxConns > 0 {
		ledgerPoolSaturation.Set(float64(acquired) / float64(maxConns))
	}
}
