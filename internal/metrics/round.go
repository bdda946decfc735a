package metrics

import "github.com/prometheus/client_golang/prometheus"

// RoundMetrics tracks the lifecycle of rounds held by the engine.
type RoundMetrics struct {
	Active  prometheus.Gauge
	Opened  prometheus.Counter
	Evicted prometheus.Counter
}

// NewRoundMetrics creates and registers round metrics on the given registry.
func NewRoundMetrics(reg prometheus.Registerer) *RoundMetrics {
	m := &RoundMetrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "active",
			Help:      "Current number of rounds held in memory.",
		}),
		Opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "opened_total",
			Help:      "Total number of rounds opened.",
		}),
		Evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "evicted_total",
			Help:      "Total number of closed rounds evicted after retention.",
		}),
	}

	reg.MustRegister(m.Active, m.Opened, m.Evicted)
	return m
}
