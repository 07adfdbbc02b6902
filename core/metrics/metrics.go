package metrics

import (
	"time"

	"github.com/aidline/dispatch/core/model"
)

// TransitionEvent records one attempted lifecycle transition.
type TransitionEvent struct {
	RequestID   string
	Transition  string // "initiate", "decline" or "accept"
	CallerID    string
	FromStatus  model.Status
	ToStatus    model.Status
	Index       int
	RankedCount int
	Outcome     string // "ok" or the fault kind
	Time        time.Time
}

// OracleCallEvent records one round-trip to the ranking oracle.
type OracleCallEvent struct {
	RequestID  string
	CallID     string
	PoolSize   int
	RankedSize int
	Latency    time.Duration
	Outcome    string // "ok", "ranking_format" or "upstream_unavailable"
	Time       time.Time
}

// Sink records dispatch events for observability purposes.
type Sink interface {
	RecordTransition(ev TransitionEvent) error
	RecordOracleCall(ev OracleCallEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordTransition(TransitionEvent) error { return nil }
func (NopSink) RecordOracleCall(OracleCallEvent) error { return nil }
