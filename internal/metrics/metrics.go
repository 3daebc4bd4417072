// Package metrics exposes Prometheus collectors for experiment runs and the
// request queue.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Queue message outcomes.
const (
	OutcomeReceived  = "received"
	OutcomeCommitted = "committed"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the process-wide collectors.
type Metrics struct {
	ExperimentsTotal   *prometheus.CounterVec
	ExperimentDuration prometheus.Histogram
	SweepsTotal        prometheus.Counter
	QueueMessagesTotal *prometheus.CounterVec
}

// New registers the collectors with the default registry on first use and
// returns the shared instance afterwards.
//
// Metrics:
//   - sdrsweep_experiments_total{state} - finished experiments by terminal state
//   - sdrsweep_experiment_duration_seconds - wall time per experiment
//   - sdrsweep_sweeps_total - sweeps executed across all experiments
//   - sdrsweep_queue_messages_total{outcome} - queue messages by outcome
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ExperimentsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sdrsweep_experiments_total",
					Help: "Total number of finished experiments",
				},
				[]string{"state"}, // converged, exhausted, failed
			),

			ExperimentDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "sdrsweep_experiment_duration_seconds",
					Help:    "Duration of experiment runs in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~45min
				},
			),

			SweepsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "sdrsweep_sweeps_total",
					Help: "Total number of sweeps executed",
				},
			),

			QueueMessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sdrsweep_queue_messages_total",
					Help: "Total number of queue messages by outcome",
				},
				[]string{"outcome"},
			),
		}
	})

	return globalMetrics
}

// RecordExperiment records a finished experiment. Nil-safe.
func (m *Metrics) RecordExperiment(state string, sweeps int, d time.Duration) {
	if m == nil {
		return
	}
	m.ExperimentsTotal.WithLabelValues(state).Inc()
	m.ExperimentDuration.Observe(d.Seconds())
	m.SweepsTotal.Add(float64(sweeps))
}

// RecordQueueMessage counts a queue message outcome. Nil-safe.
func (m *Metrics) RecordQueueMessage(outcome string) {
	if m == nil {
		return
	}
	m.QueueMessagesTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
