package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	CastAccepted = "accepted"
	CastDropped  = "dropped"

	OutcomeDecided    = "decided"
	OutcomeNoDecision = "no_decision"
)

// VoteMetrics holds Prometheus metrics for casting and aggregation.
type VoteMetrics struct {
	VotesCast      *prometheus.CounterVec
	Results        *prometheus.CounterVec
	ResultDuration prometheus.Histogram
	Threshold      prometheus.Gauge
}

// NewVoteMetrics creates and registers vote metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Total number of cast attempts, by result.",
		}, []string{"result"}),
		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Total number of computed results, by outcome.",
		}, []string{"outcome"}),
		ResultDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "result_duration_seconds",
			Help:      "Duration of result computation in seconds.",
			Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		Threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_threshold_ratio",
			Help:      "Threshold used by the most recent result computation.",
		}),
	}

	reg.MustRegister(m.VotesCast, m.Results, m.ResultDuration, m.Threshold)
	return m
}

// ObserveCast counts one cast attempt.
func (m *VoteMetrics) ObserveCast(accepted bool) {
	if accepted {
		m.VotesCast.WithLabelValues(CastAccepted).Inc()
		return
	}
	m.VotesCast.WithLabelValues(CastDropped).Inc()
}

// ObserveResult records the outcome of one aggregation.
func (m *VoteMetrics) ObserveResult(reached bool, threshold, seconds float64) {
	outcome := OutcomeNoDecision
	if reached {
		outcome = OutcomeDecided
	}
	m.Results.WithLabelValues(outcome).Inc()
	m.ResultDuration.Observe(seconds)
	m.Threshold.Set(threshold)
}
