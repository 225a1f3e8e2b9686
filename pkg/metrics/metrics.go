// Package metrics exposes pipeline measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikeboe/research-writer/pkg/research"
)

const namespace = "research_writer"

// Metrics implements research.Recorder. A nil *Metrics records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	tasks      *prometheus.CounterVec
	stages     *prometheus.HistogramVec
	iterations prometheus.Histogram
	streams    prometheus.Gauge
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished generation runs by job kind and outcome.",
		}, []string{"kind", "outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_tasks_total",
			Help:      "Search and scrape sub-tasks by tool and result.",
		}, []string{"tool", "result"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each generation stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reflection_iterations",
			Help:      "Tool rounds run by the reflection loop per article.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Event streams currently open.",
		}),
	}
	m.registry.MustRegister(
		m.runs, m.tasks, m.stages, m.iterations, m.streams,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunFinished(kind research.JobKind, outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) FanoutTask(tool, result string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(tool, result).Inc()
}

func (m *Metrics) StageDuration(stage research.Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) ReflectionIterations(n int) {
	if m == nil {
		return
	}
	m.iterations.Observe(float64(n))
}

// StreamOpened tracks an open event stream until the returned func is called.
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.streams.Inc()
	return m.streams.Dec
}
