package train

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects training-loop instrumentation on its own registry, so
// embedding binaries decide whether and how to expose it.
type Metrics struct {
	registry     *prometheus.Registry
	steps        prometheus.Counter
	evalDuration prometheus.Histogram
}

// NewMetrics creates and registers the training metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "centernet",
			Subsystem: "train",
			Name:      "steps_total",
			Help:      "Training steps completed.",
		}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "centernet",
			Subsystem: "train",
			Name:      "evaluation_seconds",
			Help:      "Wall time of evaluation rounds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	m.registry.MustRegister(m.steps, m.evalDuration)
	return m
}

// Registry exposes the underlying registry for optional exposition.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// IncStep records one completed training step.
func (m *Metrics) IncStep() { m.steps.Inc() }

// ObserveEvaluation records the wall time of one evaluation round.
func (m *Metrics) ObserveEvaluation(d time.Duration) {
	m.evalDuration.Observe(d.Seconds())
}
