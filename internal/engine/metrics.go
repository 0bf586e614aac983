package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/brokercheck/internal/ir"
)

// Metrics holds Prometheus metrics for a Checker.
// A nil *Metrics disables recording.
type Metrics struct {
	eventsProcessed prometheus.Counter
	findings        *prometheus.CounterVec // By validator and code
	checkpoints     prometheus.Counter
}

// NewMetrics creates checker metrics and registers them with reg.
// Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil // Metrics disabled
	}

	m := &Metrics{
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brokercheck",
			Name:      "events_processed_total",
			Help:      "Total number of log lines fed to the validators",
		}),

		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brokercheck",
			Name:      "findings_total",
			Help:      "Total number of validation failures reported",
		}, []string{"validator", "code"}),

		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brokercheck",
			Name:      "checkpoints_total",
			Help:      "Total number of checkpoints saved",
		}),
	}

	for _, c := range []prometheus.Collector{m.eventsProcessed, m.findings, m.checkpoints} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordLine(findings []ir.Finding) {
	if m == nil {
		return
	}
	m.eventsProcessed.Inc()
	for _, f := range findings {
		m.findings.WithLabelValues(f.Validator, f.Code).Inc()
	}
}

func (m *Metrics) recordCheckpoint() {
	if m == nil {
		return
	}
	m.checkpoints.Inc()
}
