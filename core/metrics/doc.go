package metrics

// Package metrics defines interfaces for collecting dispatch metrics. Sinks
// like PromSink and InfluxSink record lifecycle transitions and oracle calls
// and can be combined with NewMultiSink. The sinks themselves live under
// infra/metrics; the engine only sees the Sink interface.
