package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels requests that produced a full report.
	OutcomeSuccess = "success"
	// OutcomePartial labels requests that returned partial results.
	OutcomePartial = "partial"
	// OutcomeError labels failed requests.
	OutcomeError = "error"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logtriage",
			Name:      "requests_total",
			Help:      "Total number of collect/triage requests handled, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	requestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "logtriage",
			Name:      "request_seconds",
			Help:      "Request latency in seconds, partitioned by operation.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"operation"},
	)

	entriesCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logtriage",
			Name:      "entries_collected_total",
			Help:      "Total log entries normalized, partitioned by operation.",
		},
		[]string{"operation"},
	)

	recordsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "logtriage",
			Name:      "records_skipped_total",
			Help:      "Total raw records dropped during normalization.",
		},
	)
)

// Register attaches logtriage collectors to the supplied Prometheus
// registerer. Double registration is tolerated so tests can share the
// default registry.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		requestsTotal,
		requestDurationSeconds,
		entriesCollected,
		recordsSkipped,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRequest records one handled request.
func ObserveRequest(operation string, duration time.Duration, outcome string) {
	requestsTotal.WithLabelValues(operation, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	requestDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveCollection records the entry and skip counts of one collection pass.
func ObserveCollection(operation string, entries, skipped int) {
	entriesCollected.WithLabelValues(operation).Add(float64(entries))
	recordsSkipped.Add(float64(skipped))
}
