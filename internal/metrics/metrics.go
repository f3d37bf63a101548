// Package metrics holds the Prometheus collectors shared by the batch and
// the API server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parlvotes"

var (
	// Labels: legislature, status (published, failed, skipped)
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "builds_total",
		Help:      "Total legislature builds by outcome",
	}, []string{"legislature", "status"})

	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "build_duration_seconds",
		Help:      "Wall time of a legislature build",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"legislature"})

	voteRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "vote_rows",
		Help:      "Vote rows in the last published table",
	}, []string{"legislature"})

	// Labels: legislature, result (downloaded, cached, failed)
	upstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "refreshes_total",
		Help:      "Dump refreshes by result",
	}, []string{"legislature", "result"})

	snapshotVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "version",
		Help:      "Version of the snapshot being served",
	})

	// Labels: route, code
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route and status code",
	}, []string{"route", "code"})
)

// ObserveBuild records the outcome of a build.
func ObserveBuild(legislature, status string, elapsed time.Duration, rows int) {
	buildsTotal.WithLabelValues(legislature, status).Inc()
	buildDuration.WithLabelValues(legislature).Observe(elapsed.Seconds())
	if status == "published" {
		voteRows.WithLabelValues(legislature).Set(float64(rows))
	}
}

// ObserveRefresh records one upstream refresh attempt.
func ObserveRefresh(legislature, result string) {
	upstreamFetches.WithLabelValues(legislature, result).Inc()
}

// SetSnapshotVersion publishes the version of the live snapshot.
func SetSnapshotVersion(v uint64) {
	snapshotVersion.Set(float64(v))
}

// ObserveRequest counts one API response.
func ObserveRequest(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}
