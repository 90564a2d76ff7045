// Package metrics holds the Prometheus collectors for the query layer and the
// maintenance utilities.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surplus",
		Name:      "queries_total",
		Help:      "Read queries executed, by query name and outcome.",
	}, []string{"query", "outcome"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "surplus",
		Name:      "query_duration_seconds",
		Help:      "Read query latency, by query name.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"query"})

	WritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surplus",
		Name:      "writes_total",
		Help:      "Write operations through the API, by entity and action.",
	}, []string{"entity", "action"})

	ListingsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surplus",
		Name:      "listings_purged_total",
		Help:      "Expired food listings removed by the purge utility.",
	})

	LiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "surplus",
		Name:      "live_clients",
		Help:      "Dashboard clients connected to the change feed.",
	})

	DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surplus",
		Name:      "live_dropped_messages_total",
		Help:      "Change notifications dropped because a client was too slow.",
	})

	BackupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surplus",
		Name:      "backups_total",
		Help:      "Database backups attempted, by outcome.",
	}, []string{"outcome"})
)

// ObserveQuery records one query execution.
func ObserveQuery(name string, start time.Time, err error) {
	QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	QueriesTotal.WithLabelValues(name, outcome(err)).Inc()
}

// ObserveBackup records one backup attempt.
func ObserveBackup(err error) {
	BackupsTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
