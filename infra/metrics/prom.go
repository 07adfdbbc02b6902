package metrics

import (
	coremetrics "github.com/aidline/dispatch/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records dispatch events in Prometheus metrics.
type PromSink struct {
	transitions   *prometheus.CounterVec
	oracleCalls   *prometheus.CounterVec
	oracleLatency *prometheus.HistogramVec
}

// NewPromSink registers dispatch metrics on the default Prometheus
// registerer. The /metrics endpoint is served by the API server.
func NewPromSink() (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_transitions_total",
		Help: "Total number of attempted lifecycle transitions",
	}, []string{"transition", "outcome"})
	oracleCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_oracle_calls_total",
		Help: "Total number of ranking oracle round-trips",
	}, []string{"outcome"})
	oracleLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_oracle_latency_seconds",
		Help:    "Ranking oracle round-trip latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	if err := reg.Register(transitions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(oracleCalls); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			oracleCalls = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(oracleLatency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			oracleLatency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{transitions: transitions, oracleCalls: oracleCalls, oracleLatency: oracleLatency}, nil
}

// RecordTransition increments the transition counter.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.Transition, ev.Outcome).Inc()
	return nil
}

// RecordOracleCall increments the call counter and observes latency.
func (s *PromSink) RecordOracleCall(ev coremetrics.OracleCallEvent) error {
	s.oracleCalls.WithLabelValues(ev.Outcome).Inc()
	s.oracleLatency.WithLabelValues(ev.Outcome).Observe(ev.Latency.Seconds())
	return nil
}
