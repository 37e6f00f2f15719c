package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors recorded by the orchestration layer.
type Metrics struct {
	registry     *prometheus.Registry
	Runs         *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	PollAttempts *prometheus.HistogramVec
	InFlight     prometheus.Gauge
	Persistence  *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "operation_runs_total",
			Help:      "Completed operation runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studio",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of operation runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		PollAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studio",
			Name:      "operation_poll_attempts",
			Help:      "Status checks issued per polled run.",
			Buckets:   prometheus.LinearBuckets(1, 3, 10),
		}, []string{"kind"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "studio",
			Name:      "operations_in_flight",
			Help:      "Operation runs currently executing.",
		}),
		Persistence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "layer_persist_total",
			Help:      "Layer persistence attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.Runs, m.RunDuration, m.PollAttempts, m.InFlight, m.Persistence,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(kind, result).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObservePolls records how many status checks a run needed.
func (m *Metrics) ObservePolls(kind string, attempts int) {
	if m == nil {
		return
	}
	m.PollAttempts.WithLabelValues(kind).Observe(float64(attempts))
}

func (m *Metrics) RunStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) RunFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}

// ObservePersist counts a persistence attempt; ok=false marks a failure.
func (m *Metrics) ObservePersist(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Persistence.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
