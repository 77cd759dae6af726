package j2pert

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors updated by propagators and extractors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	propagations *prometheus.CounterVec
	steps        prometheus.Counter
	evaluations  prometheus.Counter
	duration     *prometheus.HistogramVec
	degenerate   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: nil metrics registerer", ErrInvalidConfig)
	}
	m := &Metrics{
		propagations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "j2pert",
			Name:      "propagations_total",
			Help:      "Number of propagations by method and result.",
		}, []string{"method", "result"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "j2pert",
			Name:      "integration_steps_total",
			Help:      "Number of accepted integration steps.",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "j2pert",
			Name:      "rhs_evaluations_total",
			Help:      "Number of evaluations of the equations of motion.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "j2pert",
			Name:      "propagation_duration_seconds",
			Help:      "Wall time of propagations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"method"}),
		degenerate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "j2pert",
			Name:      "degenerate_samples_total",
			Help:      "Number of extracted samples with an undefined element, by flag.",
		}, []string{"flag"}),
	}
	for _, c := range []prometheus.Collector{m.propagations, m.steps, m.evaluations, m.duration, m.degenerate} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRun(run RunStats, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	method := run.Method.String()
	m.propagations.WithLabelValues(method, result).Inc()
	m.steps.Add(float64(run.Steps))
	m.evaluations.Add(float64(run.Evaluations))
	m.duration.WithLabelValues(method).Observe(run.Duration.Seconds())
}

func (m *Metrics) observeFlags(f Flags) {
	if m == nil || f == 0 {
		return
	}
	for _, fn := range flagNames {
		if f.Has(fn.f) {
			m.degenerate.WithLabelValues(fn.name).Inc()
		}
	}
}
