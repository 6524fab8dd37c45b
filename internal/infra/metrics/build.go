package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(ledgerBuild)
}

// always 1; the labels identify the running ledger binary
var ledgerBuild = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "prepvio_ledger_build_info",
		Help: "Subscription ledger build, labelled by release version, git commit and Go runtime.",
	},
	[]string{"version", "commit", "go_version"},
)

// SetBuildInfo publishes the ledger build. Empty values are reported as "unknown".
func SetBuildInfo(version, commit string) {
	if version == "" {
		version = "unknown"
	}
	if commit == "" {
		commit = "unknown"
	}
	ledgerBuild.Reset()
	ledgerBuild.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
