// Package metrics defines the Prometheus collectors of the learner
// service
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "learner"

// Registry holds every collector of the service
var Registry = prometheus.NewRegistry()

var (
	inferences = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "inferences_total",
			Help:      "Count of decisions returned by act.",
		},
		[]string{"learner"},
	)
	submitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "submitted_entries_total",
			Help:      "Count of outcome reports accepted into the episode buffer.",
		},
		[]string{"learner"},
	)
	duplicates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "duplicate_entries_total",
			Help:      "Count of outcome reports rejected because their eid was already buffered.",
		},
		[]string{"learner"},
	)
	trainedItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "trained_items_total",
			Help:      "Count of outcome reports consumed by training.",
		},
		[]string{"learner"},
	)
	episodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "episodes_total",
			Help:      "Count of windows trained.",
		},
		[]string{"learner"},
	)
	evicted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "evicted_entries_total",
			Help:      "Count of outcome reports dropped while resynchronizing past a missing eid.",
		},
		[]string{"learner"},
	)
	resets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "resets_total",
			Help:      "Count of learner resets.",
		},
		[]string{"learner"},
	)
	pending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "pending_entries",
			Help:      "Number of outcome reports waiting in the episode buffer.",
		},
		[]string{"learner"},
	)
	epsilon = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "epsilon",
			Help:      "Current exploration probability.",
		},
		[]string{"learner"},
	)
	windowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "window_training_duration_seconds",
			Help:      "Time spent applying the TD updates of one window.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"learner"},
	)
)

var registerMetrics sync.Once

// Register registers all collectors with Registry
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(inferences)
		Registry.MustRegister(submitted)
		Registry.MustRegister(duplicates)
		Registry.MustRegister(trainedItems)
		Registry.MustRegister(episodes)
		Registry.MustRegister(evicted)
		Registry.MustRegister(resets)
		Registry.MustRegister(pending)
		Registry.MustRegister(epsilon)
		Registry.MustRegister(windowDuration)
	})
}

// Handler returns the HTTP handler exposing Registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordInference records a decision and the ε it was made with
func RecordInference(learner string, eps float64) {
	inferences.WithLabelValues(learner).Inc()
	epsilon.WithLabelValues(learner).Set(eps)
}

// RecordSubmitted records an outcome report accepted into the buffer
func RecordSubmitted(learner string) {
	submitted.WithLabelValues(learner).Inc()
}

// RecordDuplicate records a rejected duplicate outcome report
func RecordDuplicate(learner string) {
	duplicates.WithLabelValues(learner).Inc()
}

// RecordWindow records a trained window of size items and the time
// taken to train it
func RecordWindow(learner string, items int, seconds float64) {
	trainedItems.WithLabelValues(learner).Add(float64(items))
	episodes.WithLabelValues(learner).Inc()
	windowDuration.WithLabelValues(learner).Observe(seconds)
}

// RecordEvicted records entries dropped by resynchronization
func RecordEvicted(learner string, n uint64) {
	if n > 0 {
		evicted.WithLabelValues(learner).Add(float64(n))
	}
}

// RecordReset records a learner reset
func RecordReset(learner string) {
	resets.WithLabelValues(learner).Inc()
}

// RecordPending sets the number of buffered entries
func RecordPending(learner string, n int) {
	pending.WithLabelValues(learner).Set(float64(n))
}

// RecordEpsilon sets the current exploration probability
func RecordEpsilon(learner string, eps float64) {
	epsilon.WithLabelValues(learner).Set(eps)
}
