package verify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts verification submissions and outcomes. promauto registers
// on the default registry, so a single instance must be shared by every
// orchestrator in the process.
type Metrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// NewMetrics registers and returns the verification metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verify",
			Subsystem: "orchestrator",
			Name:      "attempts_total",
			Help:      "Verification submissions by attempt phase.",
		}, []string{"network", "phase"}),
		outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verify",
			Subsystem: "orchestrator",
			Name:      "outcomes_total",
			Help:      "Finished verification requests by outcome.",
		}, []string{"network", "outcome"}),
	}
}

// Methods are nil-safe so metrics stay optional in library use.

func (m *Metrics) observeAttempt(network, phase string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(network, phase).Inc()
}

func (m *Metrics) observeOutcome(network, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(network, outcome).Inc()
}
