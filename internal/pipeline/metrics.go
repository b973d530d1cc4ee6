package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-stage latency and fallbacks.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	Fallbacks     *prometheus.CounterVec
	Documents     *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tradedocs",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"stage"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradedocs",
			Subsystem: "pipeline",
			Name:      "fallbacks_total",
			Help:      "Agent stages that returned their fallback report.",
		}, []string{"stage"}),
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradedocs",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Documents run through the pipeline by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.StageDuration, m.Fallbacks, m.Documents)
	}
	return m
}
