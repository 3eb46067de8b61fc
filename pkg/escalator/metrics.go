package escalator

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes Prometheus metrics for escalation runs.
type Metrics struct {
	attempts         *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	teardownFailures prometheus.Counter
}

// NewMetrics creates the orchestrator's metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escalade_tier_attempts_total",
				Help: "Tier attempts by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "escalade_tier_attempt_duration_seconds",
				Help:    "Duration of tier attempts",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"tier"},
		),
		teardownFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "escalade_teardown_failures_total",
				Help: "Cluster teardowns that could not be confirmed",
			},
		),
	}
}

// Register registers all metrics with the given registerer.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.attempts, m.attemptDuration, m.teardownFailures} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeAttempt(rec RunRecord) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(rec.Tier, string(rec.Outcome)).Inc()
	m.attemptDuration.WithLabelValues(rec.Tier).Observe(rec.Duration.Seconds())
	if rec.TeardownErr != "" {
		m.teardownFailures.Inc()
	}
}
