// Package telemetry defines the fire-and-forget event sink consumed by the
// orchestration core. A nil or absent sink never affects correctness; every
// call site goes through Record, which tolerates a nil Sink.
package telemetry

import (
	"time"
)

// EventKind classifies telemetry events emitted by the core
type EventKind string

const (
	EventProviderCall    EventKind = "provider_call"
	EventProviderFailure EventKind = "provider_failure"
	EventProviderSkipped EventKind = "provider_skipped"
	EventCacheHit        EventKind = "cache_hit"
	EventCacheMiss       EventKind = "cache_miss"
	EventCacheEviction   EventKind = "cache_eviction"
	EventRequestComplete EventKind = "request_complete"
	EventRequestFailed   EventKind = "request_failed"
	EventRequestDropped  EventKind = "request_dropped"
	EventRequestRetried  EventKind = "request_retried"
	EventBreakerOpened   EventKind = "breaker_opened"
	EventBreakerClosed   EventKind = "breaker_closed"
	EventQueueDepth      EventKind = "queue_depth"
)

// Event is a single telemetry observation
type Event struct {
	Kind         EventKind
	Provider     string
	AnalysisType string
	Duration     time.Duration
	Value        float64
	Error        string
}

// Sink receives telemetry events. Implementations must be non-blocking and
// must never return errors to the caller.
type Sink interface {
	Record(event Event)
}

// Record forwards an event to the sink if one is configured
func Record(sink Sink, event Event) {
	if sink == nil {
		return
	}
	sink.Record(event)
}

// NopSink discards all events
type NopSink struct{}

// Record implements Sink
func (NopSink) Record(Event) {}
