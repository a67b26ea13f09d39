package device

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for device verification.
type Metrics struct {
	// Verification outcomes by decision
	Decisions *prometheus.CounterVec

	// Time spent inside Evaluate, lock wait included
	EvaluateLatency prometheus.Histogram
}

// NewMetrics creates verification metrics registered with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deviceguard_verification_decisions_total",
			Help: "Total device verification decisions by outcome",
		}, []string{"decision"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "deviceguard_verification_duration_seconds",
			Help:    "Duration of device verification evaluation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

// IncrementDecision records a verification outcome.
func (m *Metrics) IncrementDecision(decision Decision) {
	if m != nil {
		m.Decisions.WithLabelValues(string(decision)).Inc()
	}
}

// ObserveEvaluateLatency records the evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
