// Package metrics counts lookups and discoveries of an expansion run and
// exports them in the Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wordharvest"

// Lookup outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder owns a private registry so several runs in one process (and
// tests) never collide on the global one. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	lookups    *prometheus.CounterVec
	discovered prometheus.Counter
	skipped    prometheus.Counter
	frontier   prometheus.Gauge
	runs       *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Lookup attempts by outcome.",
		}, []string{"outcome"}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phrases_discovered_total",
			Help:      "Phrases recorded for the first time.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phrases_skipped_total",
			Help:      "Dequeued phrases skipped because they were already processed.",
		}),
		frontier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_size",
			Help:      "Phrases waiting in the working queue.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by terminal reason.",
		}, []string{"reason"}),
	}

	r.registry.MustRegister(r.lookups, r.discovered, r.skipped, r.frontier, r.runs)
	return r
}

// ObserveLookup counts one lookup attempt.
func (r *Recorder) ObserveLookup(ok bool) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	r.lookups.WithLabelValues(outcome).Inc()
}

// AddDiscovered counts newly recorded phrases.
func (r *Recorder) AddDiscovered(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.discovered.Add(float64(n))
}

// IncSkipped counts a dequeued phrase that needed no lookup.
func (r *Recorder) IncSkipped() {
	if r == nil {
		return
	}
	r.skipped.Inc()
}

// SetFrontier records the current working-queue length.
func (r *Recorder) SetFrontier(n int) {
	if r == nil {
		return
	}
	r.frontier.Set(float64(n))
}

// ObserveRun counts a finished run.
func (r *Recorder) ObserveRun(reason string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(reason).Inc()
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format,
// for node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
