package metrics

import coremetrics "github.com/aidline/dispatch/core/metrics"

// MultiSink fans dispatch events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTransition forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransition(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordOracleCall forwards the event to all sinks.
func (m *MultiSink) RecordOracleCall(ev coremetrics.OracleCallEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordOracleCall(ev); err != nil {
			return err
		}
	}
	return nil
}
