package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	snapshotsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statistics_service",
		Subsystem: "engine",
		Name:      "snapshots_generated_total",
		Help:      "Snapshot upserts completed, by domain and outcome (created or updated).",
	}, []string{"domain", "outcome"})

	reportsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statistics_service",
		Subsystem: "engine",
		Name:      "reports_served_total",
		Help:      "Rollup reports served successfully, by domain.",
	}, []string{"domain"})

	engineFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statistics_service",
		Subsystem: "engine",
		Name:      "failures_total",
		Help:      "Engine operations that failed, by domain and operation.",
	}, []string{"domain", "operation"})
)

func init() {
	prometheus.MustRegister(snapshotsGenerated, reportsServed, engineFailures)
}

// RecordSnapshotGenerated counts one completed upsert.
func RecordSnapshotGenerated(domain string, created bool) {
	outcome := "updated"
	if created {
		outcome = "created"
	}
	snapshotsGenerated.WithLabelValues(domain, outcome).Inc()
}

// RecordReportServed counts one successful rollup report.
func RecordReportServed(domain string) {
	reportsServed.WithLabelValues(domain).Inc()
}

// RecordEngineFailure counts one failed engine operation.
func RecordEngineFailure(domain, operation string) {
	engineFailures.WithLabelValues(domain, operation).Inc()
}
